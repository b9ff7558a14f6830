//go:build mlx

package acestep

import (
	"testing"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

func TestBuildSlidingWindowMask(t *testing.T) {
	const L, window = 6, 2
	mask := BuildSlidingWindowMask(L, window)
	mlx.Eval(mask)

	shape := mask.Shape()
	if shape[0] != 1 || shape[1] != 1 || shape[2] != L || shape[3] != L {
		t.Fatalf("mask shape = %v, want [1, 1, %d, %d]", shape, L, L)
	}

	data := mask.Data()
	for i := 0; i < L; i++ {
		for j := 0; j < L; j++ {
			v := data[i*L+j]
			dist := i - j
			if dist < 0 {
				dist = -dist
			}
			if dist <= window && v != 0 {
				t.Errorf("position (%d, %d) inside window = %g, want 0", i, j, v)
			}
			if dist > window && v >= 0 {
				t.Errorf("position (%d, %d) outside window = %g, want negative", i, j, v)
			}
		}
	}
}

func TestSlidingMaskCacheReuse(t *testing.T) {
	cache := newSlidingMaskCache(4)
	a := cache.get(8)
	b := cache.get(8)
	if a != b {
		t.Error("cache returned distinct masks for the same length")
	}
	if cache.get(16) == a {
		t.Error("different lengths must not share a mask")
	}
}

func TestEncoderAttentionMask(t *testing.T) {
	// Batch of one with the last two positions padded.
	m := mlx.NewArray([]float32{1, 1, 0, 0}, []int32{1, 4})
	add := EncoderAttentionMask(m)
	mlx.Eval(add)

	shape := add.Shape()
	if shape[0] != 1 || shape[1] != 1 || shape[2] != 1 || shape[3] != 4 {
		t.Fatalf("additive mask shape = %v", shape)
	}
	data := add.Data()
	if data[0] != 0 || data[1] != 0 {
		t.Errorf("kept positions = %g, %g, want 0", data[0], data[1])
	}
	if data[2] >= 0 || data[3] >= 0 {
		t.Errorf("padded positions = %g, %g, want negative", data[2], data[3])
	}
}

func TestNormalizeTensorLayout(t *testing.T) {
	// Plain conv [out, in, k] becomes [out, k, in].
	conv := mlx.Zeros([]int32{8, 4, 7}, mlx.DtypeFloat32)
	got := NormalizeTensorLayout("conv_in.weight", conv)
	shape := got.Shape()
	if shape[0] != 8 || shape[1] != 7 || shape[2] != 4 {
		t.Errorf("conv layout = %v, want [8, 7, 4]", shape)
	}

	// Transposed conv [in, out, k] becomes [out, k, in].
	convT := mlx.Zeros([]int32{4, 8, 5}, mlx.DtypeFloat32)
	got = NormalizeTensorLayout("blocks.0.conv_t.weight", convT)
	shape = got.Shape()
	if shape[0] != 8 || shape[1] != 5 || shape[2] != 4 {
		t.Errorf("transposed conv layout = %v, want [8, 5, 4]", shape)
	}

	// Linear weights and biases pass through.
	lin := mlx.Zeros([]int32{8, 4}, mlx.DtypeFloat32)
	if NormalizeTensorLayout("q_proj.weight", lin) != lin {
		t.Error("rank-2 weight must pass through")
	}
	bias := mlx.Zeros([]int32{8}, mlx.DtypeFloat32)
	if NormalizeTensorLayout("conv_in.bias", bias) != bias {
		t.Error("bias must pass through")
	}
}
