//go:build mlx

package acestep

import (
	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/nn"
)

// Attention implements grouped-query attention with per-head QK-RMSNorm.
// The same projection layout serves self-attention (with RoPE and an
// optional sliding mask) and cross-attention (encoder K/V, optionally
// cached).
type Attention struct {
	QProj *nn.Linear  `weight:"q_proj"`
	KProj *nn.Linear  `weight:"k_proj"`
	VProj *nn.Linear  `weight:"v_proj"`
	OProj *nn.Linear  `weight:"o_proj"`
	QNorm *nn.RMSNorm `weight:"q_norm"`
	KNorm *nn.RMSNorm `weight:"k_norm"`

	// Set after loading.
	NumHeads   int32
	NumKVHeads int32
	HeadDim    int32
	Scale      float32
}

// projectHeads applies a projection and reshapes to [B, heads, L, headDim],
// normalizing per head when norm is non-nil.
func (a *Attention) projectHeads(proj *nn.Linear, norm *nn.RMSNorm, x *mlx.Array, heads int32) *mlx.Array {
	shape := x.Shape()
	h := proj.Forward(x)
	h = mlx.Reshape(h, shape[0], shape[1], heads, a.HeadDim)
	if norm != nil {
		h = norm.Forward(h)
	}
	return mlx.Transpose(h, 0, 2, 1, 3)
}

// SelfForward runs self-attention over x: [B, L, D].
// mask is an additive [*, *, L, L] mask or nil for full attention.
func (a *Attention) SelfForward(x *mlx.Array, rope *RoPECache, mask *mlx.Array) *mlx.Array {
	shape := x.Shape()
	B, L := shape[0], shape[1]

	q := a.projectHeads(a.QProj, a.QNorm, x, a.NumHeads)
	k := a.projectHeads(a.KProj, a.KNorm, x, a.NumKVHeads)
	v := a.projectHeads(a.VProj, nil, x, a.NumKVHeads)

	q = ApplyRoPE(q, rope)
	k = ApplyRoPE(k, rope)

	if a.NumHeads > a.NumKVHeads {
		repeat := a.NumHeads / a.NumKVHeads
		k = nn.RepeatKV(k, repeat)
		v = nn.RepeatKV(v, repeat)
	}

	out := mlx.ScaledDotProductAttention(q, k, v, a.Scale, mask)
	out = mlx.Transpose(out, 0, 2, 1, 3)
	out = mlx.Reshape(out, B, L, a.NumHeads*a.HeadDim)
	return a.OProj.Forward(out)
}

// CrossForward attends from x: [B, L, D] to encoder states [B, encL, H_enc].
// encMask is an additive [B, 1, 1, encL] mask or nil. When the cache is
// enabled, encoder K/V are computed once per layer and reused across steps.
func (a *Attention) CrossForward(x, enc *mlx.Array, encMask *mlx.Array, cache *CrossAttnCache, layer int) *mlx.Array {
	shape := x.Shape()
	B, L := shape[0], shape[1]

	q := a.projectHeads(a.QProj, a.QNorm, x, a.NumHeads)

	k, v, ok := cache.get(layer)
	if !ok {
		k = a.projectHeads(a.KProj, a.KNorm, enc, a.NumKVHeads)
		v = a.projectHeads(a.VProj, nil, enc, a.NumKVHeads)
		if a.NumHeads > a.NumKVHeads {
			repeat := a.NumHeads / a.NumKVHeads
			k = nn.RepeatKV(k, repeat)
			v = nn.RepeatKV(v, repeat)
		}
		cache.put(layer, k, v)
	}

	out := mlx.ScaledDotProductAttention(q, k, v, a.Scale, encMask)
	out = mlx.Transpose(out, 0, 2, 1, 3)
	out = mlx.Reshape(out, B, L, a.NumHeads*a.HeadDim)
	return a.OProj.Forward(out)
}
