//go:build mlx

package acestep

import (
	"math"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

// RoPECache holds precomputed rotary cos/sin tables for one sequence length.
type RoPECache struct {
	Cos *mlx.Array // [1, 1, L, headDim]
	Sin *mlx.Array // [1, 1, L, headDim]
	Len int32
}

// ComputeRoPE builds rotary tables for positions 0..seqLen-1.
// Frequencies follow theta^(-2i/d); the half-dim table is duplicated so the
// rotate-half application can multiply elementwise over the full head dim.
func ComputeRoPE(seqLen, headDim int32, theta float64) *RoPECache {
	half := headDim / 2
	logTheta := math.Log(theta)

	cosData := make([]float32, seqLen*headDim)
	sinData := make([]float32, seqLen*headDim)
	for pos := int32(0); pos < seqLen; pos++ {
		for i := int32(0); i < half; i++ {
			freq := math.Exp(-logTheta * float64(2*i) / float64(headDim))
			angle := float64(pos) * freq
			c := float32(math.Cos(angle))
			s := float32(math.Sin(angle))
			base := pos * headDim
			cosData[base+i] = c
			cosData[base+half+i] = c
			sinData[base+i] = s
			sinData[base+half+i] = s
		}
	}

	cos := mlx.NewArray(cosData, []int32{1, 1, seqLen, headDim})
	sin := mlx.NewArray(sinData, []int32{1, 1, seqLen, headDim})
	mlx.Keep(cos, sin)
	return &RoPECache{Cos: cos, Sin: sin, Len: seqLen}
}

// rotateHalf maps [x1, x2] -> [-x2, x1] along the last axis.
func rotateHalf(x *mlx.Array) *mlx.Array {
	shape := x.Shape()
	last := len(shape) - 1
	half := shape[last] / 2
	x1 := mlx.SliceAxis(x, last, 0, half)
	x2 := mlx.SliceAxis(x, last, half, shape[last])
	return mlx.Concatenate([]*mlx.Array{mlx.Neg(x2), x1}, last)
}

// ApplyRoPE rotates q or k by the cached tables.
// x: [B, H, L, headDim], tables broadcast over batch and heads.
func ApplyRoPE(x *mlx.Array, rope *RoPECache) *mlx.Array {
	return mlx.Add(mlx.Mul(x, rope.Cos), mlx.Mul(rotateHalf(x), rope.Sin))
}
