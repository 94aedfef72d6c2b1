package deepdub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VoiceService manages cloned voice assets and speaker classification.
type VoiceService struct {
	client *Client
}

func newVoiceService(c *Client) *VoiceService {
	return &VoiceService{client: c}
}

// List returns the account's voice assets.
func (s *VoiceService) List(ctx context.Context) ([]Voice, error) {
	var voices []Voice
	if err := s.client.doJSONRequest(ctx, http.MethodGet, "/voice", nil, &voices); err != nil {
		return nil, err
	}
	return voices, nil
}

// addVoiceBody is the voice creation wire payload.
type addVoiceBody struct {
	Name          string `json:"name"`
	Gender        string `json:"gender"`
	Age           int    `json:"age"`
	Locale        string `json:"locale"`
	Publish       bool   `json:"publish"`
	SpeakingStyle string `json:"speaking_style"`
	SpeakerID     string `json:"speaker_id"`
	Title         string `json:"title"`
	Data          string `json:"data"`
	Filename      string `json:"filename"`
}

// Add creates a cloned voice from reference audio.
func (s *VoiceService) Add(ctx context.Context, req *AddVoiceRequest) (*Voice, error) {
	if req.Name == "" {
		return nil, errors.New("deepdub: voice name is required")
	}
	if len(req.Data) == 0 {
		return nil, errors.New("deepdub: reference audio data is required")
	}
	gender := strings.ToLower(req.Gender)
	if gender != "male" && gender != "female" {
		return nil, fmt.Errorf("deepdub: invalid gender %q", req.Gender)
	}

	style := req.SpeakingStyle
	if style == "" {
		style = "Neutral"
	}
	data, filename := encodeReferenceAudio(req.Data, req.Filename)
	speakerID := uuid.New().String()

	body := &addVoiceBody{
		Name:          req.Name,
		Gender:        gender,
		Age:           req.Age,
		Locale:        req.Locale,
		Publish:       req.Publish,
		SpeakingStyle: style,
		SpeakerID:     speakerID,
		Title:         fmt.Sprintf("%s-%s-%d-%s-%s", req.Name, gender, req.Age, req.Locale, style),
		Data:          data,
		Filename:      filename,
	}

	var voice Voice
	if err := s.client.doJSONRequest(ctx, http.MethodPost, "/voice", body, &voice); err != nil {
		return nil, err
	}
	if voice.SpeakerID == "" {
		voice.SpeakerID = speakerID
	}
	return &voice, nil
}

// genderClassifyBody is the gender-classify action envelope.
type genderClassifyBody struct {
	Action       string `json:"action"`
	GenerationID string `json:"generationId"`
	Audio        string `json:"audio"`
	SampleRate   int    `json:"sample_rate"`
}

// ClassifyGender classifies the speaker gender of an audio sample over
// the request/response websocket. The service inspects at most the
// first second of audio; the wait is bounded by ctx (callers typically
// wrap it with a timeout of a few seconds).
func (s *VoiceService) ClassifyGender(ctx context.Context, req *GenderClassifyRequest) (*GenderResult, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("deepdub: audio data is required")
	}
	generationID := req.GenerationID
	if generationID == "" {
		generationID = generateGenerationID()
	} else if err := validateGenerationID(generationID); err != nil {
		return nil, err
	}
	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	if err := validateSampleRate(sampleRate); err != nil {
		return nil, err
	}

	conn, err := s.client.dialWS(ctx, s.client.config.wsURL)
	if err != nil {
		return nil, err
	}
	defer conn.close()

	payload, err := json.Marshal(&genderClassifyBody{
		Action:       "gender-classify",
		GenerationID: generationID,
		Audio:        base64.StdEncoding.EncodeToString(req.Audio),
		SampleRate:   sampleRate,
	})
	if err != nil {
		return nil, &ProtocolError{Reason: "encode request", Err: err}
	}
	if err := conn.send(&Frame{Tag: FrameRequestInit, Payload: payload}); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, conn.close)
	defer stop()

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	conn.conn.SetReadDeadline(deadline)

	for {
		data, err := conn.receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		var result GenderResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, &ProtocolError{Reason: "malformed classification response", Err: err}
		}
		if result.GenerationID != "" && result.GenerationID != generationID {
			continue
		}

		frame, err := decodeFrame(data)
		if err != nil {
			return nil, err
		}
		if frame.Tag == FrameError {
			return nil, frameError(frame)
		}
		if result.Gender == "" {
			// Status event for this generation; keep waiting.
			continue
		}
		return &result, nil
	}
}
