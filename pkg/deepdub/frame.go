package deepdub

import (
	"encoding/base64"
	"encoding/json"
)

// FrameTag classifies a wire message.
type FrameTag int

const (
	// FrameRequestInit opens or reconfigures a generation (stream-config,
	// text-to-speech, gender-classify).
	FrameRequestInit FrameTag = iota

	// FrameTextChunk carries synthesis input text (stream-text).
	FrameTextChunk

	// FrameAudioChunk carries one slice of synthesized audio.
	FrameAudioChunk

	// FrameControl carries a status or completion event, including
	// unrecognized messages kept as forward-compatible no-ops.
	FrameControl

	// FrameError carries a service-reported error.
	FrameError
)

func (t FrameTag) String() string {
	switch t {
	case FrameRequestInit:
		return "request-init"
	case FrameTextChunk:
		return "text-chunk"
	case FrameAudioChunk:
		return "audio-chunk"
	case FrameControl:
		return "control"
	case FrameError:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is one discrete wire message. Frames are immutable once built;
// inbound frames transfer from the codec to the reassembler on receipt.
type Frame struct {
	Tag          FrameTag
	Seq          uint64
	HasSeq       bool // whether the wire message carried an explicit sequence number
	Payload      []byte
	GenerationID string
	Final        bool

	// Error details, set when Tag == FrameError.
	ErrCode    string
	ErrMessage string
}

// codec serializes outbound request frames and parses inbound wire
// messages. Outbound sequence numbers are per-session, starting at 0,
// strictly increasing. The codec itself never blocks.
type codec struct {
	nextSeq uint64
}

// wireRequest is the outbound JSON envelope.
type wireRequest struct {
	Action string         `json:"action"`
	Config *StreamConfig  `json:"config,omitempty"`
	Data   *wireTextData  `json:"data,omitempty"`
	Resume *wireResumeReq `json:"resume,omitempty"`

	GenerationID string `json:"generationId,omitempty"`
}

type wireTextData struct {
	Text string `json:"text"`
}

type wireResumeReq struct {
	GenerationID string `json:"generationId"`
	NextSeq      uint64 `json:"nextSequence"`
}

// wireResponse is the inbound JSON envelope.
type wireResponse struct {
	GenerationID string  `json:"generationId"`
	Index        *uint64 `json:"index"`
	Data         string  `json:"data"` // base64-encoded audio
	IsFinished   bool    `json:"isFinished"`
	Error        string  `json:"error"`
	ErrorCode    string  `json:"errorCode"`
	Status       string  `json:"status"`
}

func (c *codec) seq() uint64 {
	s := c.nextSeq
	c.nextSeq++
	return s
}

// encodeInit builds a request-init frame carrying the stream
// configuration for generationID. resumeFrom is the next expected audio
// sequence; it is non-zero only on reconnect, asking the server to
// resume rather than restart.
func (c *codec) encodeInit(cfg *StreamConfig, generationID string, resumeFrom uint64) (*Frame, error) {
	req := wireRequest{
		Action:       "stream-config",
		Config:       cfg,
		GenerationID: generationID,
	}
	if resumeFrom > 0 {
		req.Resume = &wireResumeReq{GenerationID: generationID, NextSeq: resumeFrom}
	}
	return c.marshalFrame(FrameRequestInit, &req)
}

// encodeText builds a text-chunk frame.
func (c *codec) encodeText(text string) (*Frame, error) {
	return c.marshalFrame(FrameTextChunk, &wireRequest{
		Action: "stream-text",
		Data:   &wireTextData{Text: text},
	})
}

func (c *codec) marshalFrame(tag FrameTag, req *wireRequest) (*Frame, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, &ProtocolError{Reason: "encode request", Err: err}
	}
	return &Frame{Tag: tag, Seq: c.seq(), Payload: payload}, nil
}

// decodeFrame parses raw inbound wire bytes into a typed frame.
//
// Malformed JSON and undecodable audio payloads are protocol errors.
// Messages that carry none of the known fields decode to a control no-op
// frame so newer server events do not break older clients.
func decodeFrame(data []byte) (*Frame, error) {
	var resp wireResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProtocolError{Reason: "malformed frame", Err: err}
	}

	if resp.Error != "" || resp.ErrorCode != "" {
		return &Frame{
			Tag:          FrameError,
			GenerationID: resp.GenerationID,
			ErrCode:      resp.ErrorCode,
			ErrMessage:   resp.Error,
		}, nil
	}

	if resp.Data != "" {
		payload, err := base64.StdEncoding.DecodeString(resp.Data)
		if err != nil {
			return nil, &ProtocolError{Reason: "decode audio payload", Err: err}
		}
		frame := &Frame{
			Tag:          FrameAudioChunk,
			Payload:      payload,
			GenerationID: resp.GenerationID,
			Final:        resp.IsFinished,
		}
		if resp.Index != nil {
			frame.Seq = *resp.Index
			frame.HasSeq = true
		}
		return frame, nil
	}

	// Status acknowledgments, completion events and anything unrecognized.
	return &Frame{
		Tag:          FrameControl,
		GenerationID: resp.GenerationID,
		Final:        resp.IsFinished,
	}, nil
}

// frameError converts an error frame into the API error it carries.
func frameError(f *Frame) *Error {
	return &Error{
		Code:         f.ErrCode,
		Message:      f.ErrMessage,
		GenerationID: f.GenerationID,
	}
}
