package wavio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func pcmSine(n int) []byte {
	pcm := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%2000-1000)))
	}
	return pcm
}

func TestWriteFileRoundTrip(t *testing.T) {
	pcm := pcmSine(1600)
	path := filepath.Join(t.TempDir(), "out.wav")

	if err := WriteFile(path, pcm, 16000, 1); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("header = rate %d chans %d depth %d, want 16000/1/16", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(buf.Data) != 1600 {
		t.Fatalf("samples = %d, want 1600", len(buf.Data))
	}
	for i, sample := range buf.Data {
		want := int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		if sample != want {
			t.Fatalf("sample %d = %d, want %d", i, sample, want)
		}
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "x.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if err := Encode(f, []byte{1}, 16000, 1); err == nil {
		t.Error("odd-length pcm accepted")
	}
	if err := Encode(f, []byte{1, 2}, 0, 1); err == nil {
		t.Error("zero sample rate accepted")
	}
	if err := Encode(f, []byte{1, 2}, 16000, 0); err == nil {
		t.Error("zero channels accepted")
	}
}
