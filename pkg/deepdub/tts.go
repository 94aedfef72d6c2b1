package deepdub

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
)

// TTSService provides one-shot and streaming speech synthesis.
type TTSService struct {
	client *Client
}

func newTTSService(c *Client) *TTSService {
	return &TTSService{client: c}
}

// Synthesize synthesizes speech with a single REST call.
//
// Either VoicePromptID or VoiceReference is required. The response is
// the complete audio in the requested format (default mp3).
func (s *TTSService) Synthesize(ctx context.Context, req *TTSRequest) ([]byte, error) {
	if req.VoicePromptID == "" && req.VoiceReference == "" {
		return nil, errors.New("deepdub: either voice_prompt_id or voice_reference must be provided")
	}
	r := *req
	if r.Format == "" {
		r.Format = FormatMP3
	}
	if err := r.validate(true); err != nil {
		return nil, err
	}

	body, contentType, err := s.client.doRequest(ctx, http.MethodPost, "/tts", &r)
	if err != nil {
		return nil, err
	}
	return decodeAudioBody(body, contentType)
}

// retroRequest is the retroactive synthesis body; the endpoint accepts
// only the core fields.
type retroRequest struct {
	Text          string `json:"targetText"`
	Model         string `json:"model"`
	VoicePromptID string `json:"voicePromptId"`
	Locale        string `json:"locale"`
}

// SynthesizeRetro synthesizes speech retroactively against a previously
// used voice prompt.
func (s *TTSService) SynthesizeRetro(ctx context.Context, text, voicePromptID, model, locale string) ([]byte, error) {
	if model == "" {
		model = ModelETTS25
	}
	if locale == "" {
		locale = "en-US"
	}
	if err := validateModel(model); err != nil {
		return nil, err
	}

	body, contentType, err := s.client.doRequest(ctx, http.MethodPost, "/tts/retroactive", &retroRequest{
		Text:          text,
		Model:         model,
		VoicePromptID: voicePromptID,
		Locale:        locale,
	})
	if err != nil {
		return nil, err
	}
	return decodeAudioBody(body, contentType)
}

// wsTTSRequest is the text-to-speech action envelope on the
// request/response websocket.
type wsTTSRequest struct {
	Action       string `json:"action"`
	GenerationID string `json:"generationId"`
	*TTSRequest
}

// SynthesizeStream synthesizes speech over the request/response
// websocket, yielding audio chunks as the service produces them.
//
// Chunks for the request's generation are delivered in order and the
// iterator terminates after the final chunk, or with the first error.
//
//	for chunk, err := range client.TTS.SynthesizeStream(ctx, req) {
//	    if err != nil {
//	        return err
//	    }
//	    // process chunk.Data
//	}
func (s *TTSService) SynthesizeStream(ctx context.Context, req *TTSRequest) iter.Seq2[*AudioChunk, error] {
	return func(yield func(*AudioChunk, error) bool) {
		r := *req
		if r.Format == "" {
			r.Format = FormatWAV
		}
		headerless := r.Format == FormatHeaderlessWAV
		if headerless {
			r.Format = FormatWAV
		}
		if err := r.validate(false); err != nil {
			yield(nil, err)
			return
		}

		generationID := generateGenerationID()

		conn, err := s.client.dialWS(ctx, s.client.config.wsURL)
		if err != nil {
			yield(nil, err)
			return
		}
		defer conn.close()

		payload, err := json.Marshal(&wsTTSRequest{
			Action:       "text-to-speech",
			GenerationID: generationID,
			TTSRequest:   &r,
		})
		if err != nil {
			yield(nil, &ProtocolError{Reason: "encode request", Err: err})
			return
		}
		if err := conn.send(&Frame{Tag: FrameRequestInit, Payload: payload}); err != nil {
			yield(nil, err)
			return
		}

		// Unblock the read promptly when ctx is cancelled.
		stop := context.AfterFunc(ctx, conn.close)
		defer stop()

		var delivered uint64
		for {
			data, err := conn.receive()
			if err != nil {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return
				}
				if errors.Is(err, ErrEndOfStream) {
					yield(nil, &ProtocolError{Reason: "stream closed before completion"})
					return
				}
				yield(nil, err)
				return
			}

			frame, err := decodeFrame(data)
			if err != nil {
				yield(nil, err)
				return
			}
			// Responses are demultiplexed by generation ID; foreign
			// generations on a shared endpoint are skipped.
			if frame.GenerationID != "" && frame.GenerationID != generationID {
				continue
			}

			switch frame.Tag {
			case FrameError:
				yield(nil, frameError(frame))
				return

			case FrameAudioChunk:
				audio := frame.Payload
				if headerless && len(audio) >= wavHeaderLen {
					audio = audio[wavHeaderLen:]
				}
				chunk := &AudioChunk{
					Data:         audio,
					Seq:          delivered,
					GenerationID: generationID,
					Final:        frame.Final,
				}
				delivered++
				if !yield(chunk, nil) {
					return
				}
				if frame.Final {
					return
				}

			case FrameControl:
				if frame.Final {
					return
				}
			}
		}
	}
}

// decodeAudioBody interprets a REST synthesis response: either raw audio
// bytes, or a JSON envelope carrying base64 audio.
func decodeAudioBody(body []byte, contentType string) ([]byte, error) {
	if !isJSONContent(contentType) {
		return body, nil
	}
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProtocolError{Reason: "malformed synthesis response", Err: err}
	}
	if resp.Error != "" {
		return nil, &Error{Code: resp.ErrorCode, Message: resp.Error, GenerationID: resp.GenerationID}
	}
	frame, err := decodeFrame(body)
	if err != nil {
		return nil, err
	}
	if frame.Tag != FrameAudioChunk {
		return nil, &ProtocolError{Reason: "synthesis response carries no audio"}
	}
	return frame.Payload, nil
}
