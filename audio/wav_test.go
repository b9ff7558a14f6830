package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWAVHeader(t *testing.T) {
	var buf bytes.Buffer
	samples := []float32{0, 0.5, -0.5, 1}
	if err := WriteWAV(&buf, samples, 51200, 2); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	b := buf.Bytes()
	if len(b) != 44+len(samples)*2 {
		t.Fatalf("wrote %d bytes, want %d", len(b), 44+len(samples)*2)
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint16(b[22:24]); got != 2 {
		t.Errorf("channels = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(b[24:28]); got != 51200 {
		t.Errorf("sample rate = %d, want 51200", got)
	}
	if got := binary.LittleEndian.Uint32(b[28:32]); got != 51200*4 {
		t.Errorf("byte rate = %d, want %d", got, 51200*4)
	}
	if got := binary.LittleEndian.Uint32(b[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data length = %d, want %d", got, len(samples)*2)
	}
}

func TestQuantize(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{2, 32767},
		{-2, -32768},
		{0.5, 16383},
	}
	for _, tc := range cases {
		if got := quantize(tc.in); got != tc.want {
			t.Errorf("quantize(%g) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestWriteWAVRejectsRaggedBatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{0, 0, 0}, 51200, 2); err == nil {
		t.Error("odd sample count for stereo should fail")
	}
	if err := WriteWAV(&buf, []float32{0}, 51200, 0); err == nil {
		t.Error("zero channels should fail")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteFile(path, make([]float32, 2048), 51200, 2); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 44+2048*2 {
		t.Errorf("file size = %d, want %d", info.Size(), 44+2048*2)
	}
}
