// Package wavio wraps raw PCM audio in a WAV container.
//
// The streaming synthesis endpoints can emit headerless audio chunks;
// wavio turns an accumulated PCM stream back into a playable file.
package wavio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Encode writes pcm as a 16-bit PCM WAV stream to w.
func Encode(w io.WriteSeeker, pcm []byte, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("wavio: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return fmt.Errorf("wavio: invalid channel count %d", channels)
	}
	if len(pcm)%2 != 0 {
		return fmt.Errorf("wavio: pcm payload not 16-bit aligned")
	}

	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("wavio: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavio: close encoder: %w", err)
	}
	return nil
}

// WriteFile writes pcm as a WAV file at path.
func WriteFile(path string, pcm []byte, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create file: %w", err)
	}
	if err := Encode(f, pcm, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
