package deepdub

import (
	"fmt"
	"slices"
	"strings"
)

// Synthesis models.
const (
	ModelETTS30 = "dd-etts-3.0"
	ModelETTS25 = "dd-etts-2.5"
	ModelETTS11 = "dd-etts-1.1"
)

// ModelList contains the known first-party synthesis models. Custom model
// names are accepted as long as they do not use the reserved dd- prefix.
var ModelList = []string{ModelETTS30, ModelETTS25, ModelETTS11}

// Audio output formats.
const (
	FormatWAV           = "wav"
	FormatHeaderlessWAV = "headerless-wav"
	FormatMP3           = "mp3"
	FormatOpus          = "opus"
	FormatMulaw         = "mulaw"
)

// wavHeaderLen is the fixed WAV header size the service emits; it is
// stripped from the first chunk when headerless-wav is requested.
const wavHeaderLen = 0x44

var validSampleRates = []int{8000, 16000, 22050, 24000, 44100, 48000}

// AccentControl blends a base locale with an accent locale. All three
// fields must be set together. AccentRatio is a pointer so that an
// explicit 0 (no accent blending) is distinguishable from unset.
type AccentControl struct {
	AccentBaseLocale string   `json:"accentBaseLocale" yaml:"accent_base_locale"`
	AccentLocale     string   `json:"accentLocale" yaml:"accent_locale"`
	AccentRatio      *float64 `json:"accentRatio,omitempty" yaml:"accent_ratio,omitempty"`
}

// TTSRequest represents a synthesis request.
type TTSRequest struct {
	// Text to synthesize (required).
	Text string `json:"targetText" yaml:"text"`

	// Model selects the synthesis model (default dd-etts-2.5).
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// VoicePromptID references a cloned voice. Either this or
	// VoiceReference is required for REST synthesis.
	VoicePromptID string `json:"voicePromptId,omitempty" yaml:"voice_prompt_id,omitempty"`

	// VoiceReference is base64-encoded reference audio for ad-hoc cloning.
	VoiceReference string `json:"voiceReference,omitempty" yaml:"voice_reference,omitempty"`

	// Locale of the synthesized speech (default en-US).
	Locale string `json:"locale,omitempty" yaml:"locale,omitempty"`

	// Generation controls.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Variance    *float64 `json:"variance,omitempty" yaml:"variance,omitempty"`
	Duration    *float64 `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds; exclusive with Tempo
	Tempo       *float64 `json:"tempo,omitempty" yaml:"tempo,omitempty"`       // speed ratio; exclusive with Duration
	Seed        *int     `json:"seed,omitempty" yaml:"seed,omitempty"`
	PromptBoost *bool    `json:"promptBoost,omitempty" yaml:"prompt_boost,omitempty"`

	// AccentControl is optional; all three fields or none.
	AccentControl *AccentControl `json:"accentControl,omitempty" yaml:"accent_control,omitempty"`

	// TargetGender steers generation toward a gender ("male", "female").
	TargetGender string `json:"targetGender,omitempty" yaml:"target_gender,omitempty"`

	// Audio parameters.
	SampleRate int    `json:"sampleRate,omitempty" yaml:"sample_rate,omitempty"` // 8000..48000
	Format     string `json:"format,omitempty" yaml:"format,omitempty"`          // wav, headerless-wav, mp3, opus, mulaw
}

// validate checks the request against the API contract.
func (r *TTSRequest) validate(restFormats bool) error {
	if r.Text == "" {
		return fmt.Errorf("deepdub: text is required")
	}
	if r.Tempo != nil && r.Duration != nil {
		return fmt.Errorf("deepdub: tempo and duration are mutually exclusive")
	}
	if err := validateModel(r.Model); err != nil {
		return err
	}
	if err := validateFormat(r.Format, restFormats); err != nil {
		return err
	}
	if err := validateSampleRate(r.SampleRate); err != nil {
		return err
	}
	if r.AccentControl != nil {
		ac := r.AccentControl
		if ac.AccentBaseLocale == "" || ac.AccentLocale == "" || ac.AccentRatio == nil {
			return fmt.Errorf("deepdub: accent control requires accent_base_locale, accent_locale and accent_ratio together")
		}
	}
	return nil
}

func validateModel(model string) error {
	if model == "" || slices.Contains(ModelList, model) {
		return nil
	}
	if strings.HasPrefix(model, "dd-") {
		return fmt.Errorf("deepdub: unknown model %q", model)
	}
	return nil
}

func validateFormat(format string, rest bool) error {
	if format == "" {
		return nil
	}
	valid := []string{FormatWAV, FormatHeaderlessWAV, FormatMP3, FormatOpus, FormatMulaw}
	if rest {
		// The REST endpoint has no wav container output.
		valid = []string{FormatHeaderlessWAV, FormatMP3, FormatOpus, FormatMulaw}
	}
	if !slices.Contains(valid, format) {
		return fmt.Errorf("deepdub: invalid format %q", format)
	}
	return nil
}

func validateSampleRate(rate int) error {
	if rate == 0 || slices.Contains(validSampleRates, rate) {
		return nil
	}
	return fmt.Errorf("deepdub: invalid sample rate %d", rate)
}

// StreamConfig configures a bidirectional streaming session. It is sent
// as the stream-config control message when the session opens and again
// on every reconnect.
type StreamConfig struct {
	// Model selects the synthesis model (default dd-etts-2.5).
	Model string `json:"model" yaml:"model"`

	// Locale of the synthesized speech (default en-US).
	Locale string `json:"locale" yaml:"locale"`

	// VoicePromptID references the cloned voice to speak with (required).
	VoicePromptID string `json:"voicePromptId" yaml:"voice_prompt_id"`

	// Format of the audio chunks (default wav).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// SampleRate of the audio chunks (default 16000).
	SampleRate int `json:"sampleRate,omitempty" yaml:"sample_rate,omitempty"`

	Temperature *float64       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Variance    *float64       `json:"variance,omitempty" yaml:"variance,omitempty"`
	Tempo       *float64       `json:"tempo,omitempty" yaml:"tempo,omitempty"`
	PromptBoost *bool          `json:"promptBoost,omitempty" yaml:"prompt_boost,omitempty"`
	Accent      *AccentControl `json:"accentControl,omitempty" yaml:"accent_control,omitempty"`
}

func (c *StreamConfig) validate() error {
	if c.VoicePromptID == "" {
		return fmt.Errorf("deepdub: voice_prompt_id is required")
	}
	if err := validateModel(c.Model); err != nil {
		return err
	}
	if err := validateFormat(c.Format, false); err != nil {
		return err
	}
	return validateSampleRate(c.SampleRate)
}

func (c *StreamConfig) withDefaults() *StreamConfig {
	out := *c
	if out.Model == "" {
		out.Model = ModelETTS25
	}
	if out.Locale == "" {
		out.Locale = "en-US"
	}
	if out.Format == "" {
		out.Format = FormatWAV
	}
	if out.SampleRate == 0 {
		out.SampleRate = 16000
	}
	return &out
}

// AudioChunk is one contiguous slice of synthesized audio.
type AudioChunk struct {
	// Data is the raw audio payload (format per the request).
	Data []byte

	// Seq is the chunk's sequence number within its generation,
	// starting at 0 and strictly increasing.
	Seq uint64

	// GenerationID identifies the generation the chunk belongs to.
	GenerationID string

	// Final marks the last chunk of the generation.
	Final bool
}

// Voice is a cloned voice asset.
type Voice struct {
	VoiceID       string `json:"voiceId,omitempty" yaml:"voice_id,omitempty"`
	SpeakerID     string `json:"speakerId,omitempty" yaml:"speaker_id,omitempty"`
	Name          string `json:"name" yaml:"name"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Gender        string `json:"gender" yaml:"gender"`
	Age           int    `json:"age,omitempty" yaml:"age,omitempty"`
	Locale        string `json:"locale" yaml:"locale"`
	SpeakingStyle string `json:"speaking_style,omitempty" yaml:"speaking_style,omitempty"`
	Published     bool   `json:"publish,omitempty" yaml:"publish,omitempty"`
}

// AddVoiceRequest creates a cloned voice from reference audio.
type AddVoiceRequest struct {
	// Name of the voice (required).
	Name string `json:"name" yaml:"name"`

	// Gender of the speaker: "male" or "female" (required).
	Gender string `json:"gender" yaml:"gender"`

	// Locale of the reference audio (required).
	Locale string `json:"locale" yaml:"locale"`

	// Data is the reference audio (raw bytes; base64-encoded on the wire).
	Data []byte `json:"-" yaml:"-"`

	// Filename of the reference audio; generated when empty.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	Age           int    `json:"age,omitempty" yaml:"age,omitempty"`
	SpeakingStyle string `json:"speaking_style,omitempty" yaml:"speaking_style,omitempty"`
	Publish       bool   `json:"publish" yaml:"publish,omitempty"`
}

// GenderClassifyRequest classifies the speaker gender of an audio sample.
// The service inspects at most the first second of audio.
type GenderClassifyRequest struct {
	// Audio is WAV sample data (raw bytes; base64-encoded on the wire).
	Audio []byte

	// SampleRate of the audio (default 16000).
	SampleRate int

	// GenerationID for request tracking; generated when empty.
	GenerationID string
}

// GenderResult is the outcome of a gender classification.
type GenderResult struct {
	// Gender is the classification: "male" or "female".
	Gender string `json:"gender"`

	// Confidence in the classification, 0..1 when reported.
	Confidence float64 `json:"confidence,omitempty"`

	// GenerationID echoes the request's tracking ID.
	GenerationID string `json:"generationId,omitempty"`
}
