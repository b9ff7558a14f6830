package safetensors

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/x448/float16"
)

func TestDecodeFloat32(t *testing.T) {
	want := []float32{0, 1, -1.5, 1024}
	raw := make([]byte, 4*len(want))
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	got, err := DecodeFloat32("F32", raw)
	if err != nil {
		t.Fatalf("DecodeFloat32: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestDecodeFloat16(t *testing.T) {
	want := []float32{0, 0.5, -2, 64}
	raw := make([]byte, 2*len(want))
	for i, v := range want {
		binary.LittleEndian.PutUint16(raw[i*2:], float16.Fromfloat32(v).Bits())
	}

	got, err := DecodeFloat32("F16", raw)
	if err != nil {
		t.Fatalf("DecodeFloat32: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestDecodeBFloat16(t *testing.T) {
	// bfloat16 keeps the top 16 bits of a float32, so powers of two are
	// exact.
	want := []float32{1, -2, 0.25, 256}
	raw := make([]byte, 2*len(want))
	for i, v := range want {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(bits>>16))
	}

	got, err := DecodeFloat32("BF16", raw)
	if err != nil {
		t.Fatalf("DecodeFloat32: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestDecodeUnknownDtype(t *testing.T) {
	if _, err := DecodeFloat32("I64", make([]byte, 8)); err == nil {
		t.Error("unknown dtype should fail")
	}
}
