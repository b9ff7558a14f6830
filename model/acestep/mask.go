//go:build mlx

package acestep

import (
	"sync"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

// maskNegInf is a finite stand-in for -inf; it keeps fully masked rows from
// producing NaN in the softmax.
const maskNegInf = float32(-1e9)

// BuildSlidingWindowMask returns an additive [1, 1, L, L] mask that is 0
// where |i-j| <= window and strongly negative elsewhere. The mask is
// bidirectional.
func BuildSlidingWindowMask(seqLen, window int32) *mlx.Array {
	data := make([]float32, seqLen*seqLen)
	for i := int32(0); i < seqLen; i++ {
		for j := int32(0); j < seqLen; j++ {
			d := i - j
			if d < 0 {
				d = -d
			}
			if d > window {
				data[i*seqLen+j] = maskNegInf
			}
		}
	}
	mask := mlx.NewArray(data, []int32{1, 1, seqLen, seqLen})
	mlx.Keep(mask)
	return mask
}

// slidingMaskCache memoizes sliding masks by sequence length. Writes are
// idempotent: any two builds for the same length produce the same values.
type slidingMaskCache struct {
	mu     sync.Mutex
	window int32
	masks  map[int32]*mlx.Array
}

func newSlidingMaskCache(window int32) *slidingMaskCache {
	return &slidingMaskCache{window: window, masks: make(map[int32]*mlx.Array)}
}

func (c *slidingMaskCache) get(seqLen int32) *mlx.Array {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mask, ok := c.masks[seqLen]; ok {
		return mask
	}
	mask := BuildSlidingWindowMask(seqLen, c.window)
	c.masks[seqLen] = mask
	return mask
}

// EncoderAttentionMask converts a [B, encL] 0/1 validity mask into an
// additive [B, 1, 1, encL] mask for cross-attention keys.
func EncoderAttentionMask(mask *mlx.Array) *mlx.Array {
	add := mlx.MulScalar(mlx.AddScalar(mask, -1.0), -maskNegInf)
	shape := mask.Shape()
	return mlx.Reshape(add, shape[0], 1, 1, shape[1])
}
