package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DecodeFloat32 decodes raw little-endian tensor bytes to float32.
func DecodeFloat32(dtype string, raw []byte) ([]float32, error) {
	switch strings.ToUpper(dtype) {
	case "F32", "FLOAT32":
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("F32 data length %d not a multiple of 4", len(raw))
		}
		f32s := make([]float32, len(raw)/4)
		for i := range f32s {
			f32s[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return f32s, nil

	case "F16", "FLOAT16":
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("F16 data length %d not a multiple of 2", len(raw))
		}
		f32s := make([]float32, len(raw)/2)
		for i := range f32s {
			f32s[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
		return f32s, nil

	case "BF16", "BFLOAT16":
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("BF16 data length %d not a multiple of 2", len(raw))
		}
		return bfloat16.DecodeFloat32(raw), nil

	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}
