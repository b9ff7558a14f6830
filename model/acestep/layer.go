//go:build mlx

package acestep

import (
	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/nn"
)

// MLP is the SwiGLU feed-forward: down(silu(gate(x)) * up(x)), no biases.
type MLP struct {
	GateProj *nn.Linear `weight:"gate_proj"`
	UpProj   *nn.Linear `weight:"up_proj"`
	DownProj *nn.Linear `weight:"down_proj"`
}

func (m *MLP) Forward(x *mlx.Array) *mlx.Array {
	h := mlx.Mul(mlx.SiLU(m.GateProj.Forward(x)), m.UpProj.Forward(x))
	return m.DownProj.Forward(h)
}

// DecoderLayer is one transformer block: modulated self-attention, plain
// cross-attention, modulated SwiGLU MLP. The learned scale_shift_table is
// added to the shared per-step timestep projection to produce the six
// modulation vectors.
type DecoderLayer struct {
	ScaleShiftTable *mlx.Array `weight:"scale_shift_table"` // [1, 6, D]
	SelfAttn        *Attention `weight:"self_attn"`
	CrossAttn       *Attention `weight:"cross_attn"`
	MLP             *MLP       `weight:"mlp"`

	// Set after loading.
	Sliding bool
	Eps     float32
}

// splitModulation slices [B, 6, D] into six [B, 1, D] vectors.
func splitModulation(mod *mlx.Array) [6]*mlx.Array {
	var out [6]*mlx.Array
	for i := 0; i < 6; i++ {
		out[i] = mlx.SliceAxis(mod, 1, int32(i), int32(i+1))
	}
	return out
}

// modulate applies x * (1 + scale) + shift.
func modulate(x, shift, scale *mlx.Array) *mlx.Array {
	x = mlx.Mul(x, mlx.AddScalar(scale, 1.0))
	return mlx.Add(x, shift)
}

// Forward runs the block.
// h: [B, L, D]; timestepProj: [B, 6, D] shared across layers;
// slidingMask is nil for full-attention layers.
func (l *DecoderLayer) Forward(h *mlx.Array, timestepProj *mlx.Array, rope *RoPECache, slidingMask *mlx.Array, enc, encMask *mlx.Array, cache *CrossAttnCache, layer int) *mlx.Array {
	mod := splitModulation(mlx.Add(l.ScaleShiftTable, timestepProj))
	shiftSelf, scaleSelf, gateSelf := mod[0], mod[1], mod[2]
	shiftMLP, scaleMLP, gateMLP := mod[3], mod[4], mod[5]

	norm := modulate(mlx.RMSNormNoWeight(h, l.Eps), shiftSelf, scaleSelf)
	attn := l.SelfAttn.SelfForward(norm, rope, slidingMask)
	h = mlx.Add(h, mlx.Mul(attn, gateSelf))

	// Cross-attention carries no gate and no modulation.
	cross := l.CrossAttn.CrossForward(mlx.RMSNormNoWeight(h, l.Eps), enc, encMask, cache, layer)
	h = mlx.Add(h, cross)

	norm = modulate(mlx.RMSNormNoWeight(h, l.Eps), shiftMLP, scaleMLP)
	ff := l.MLP.Forward(norm)
	return mlx.Add(h, mlx.Mul(ff, gateMLP))
}
