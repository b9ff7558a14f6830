//go:build mlx

package acestep

import (
	"fmt"
	"math"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/nn"
	"github.com/erichchampion/ace-step-1.5/safetensors"
)

// TimestepEmbedding projects sinusoidal timestep features through a 2-layer
// MLP.
type TimestepEmbedding struct {
	Linear1 *nn.Linear `weight:"linear_1"`
	Linear2 *nn.Linear `weight:"linear_2"`

	FreqDim int32
}

// Forward embeds timesteps [B] to [B, D].
func (t *TimestepEmbedding) Forward(timesteps *mlx.Array) *mlx.Array {
	half := t.FreqDim / 2
	freqs := make([]float32, half)
	for i := int32(0); i < half; i++ {
		freqs[i] = float32(math.Exp(-math.Log(10000.0) * float64(i) / float64(half)))
	}
	freqsArr := mlx.NewArray(freqs, []int32{1, half})

	args := mlx.Mul(mlx.ExpandDims(timesteps, 1), freqsArr)
	emb := mlx.Concatenate([]*mlx.Array{mlx.Cos(args), mlx.Sin(args)}, 1)

	h := t.Linear1.Forward(emb)
	h = mlx.SiLU(h)
	return t.Linear2.Forward(h)
}

// TimeEmbed is one timestep head: sinusoidal embedding plus the projection
// that produces the six per-layer modulation vectors.
type TimeEmbed struct {
	Embedder *TimestepEmbedding `weight:"timestep_embedder"`
	Proj     *nn.Linear         `weight:"timestep_proj"`
}

// Forward returns (temb [B, D], proj [B, 6, D]).
func (te *TimeEmbed) Forward(timesteps *mlx.Array) (*mlx.Array, *mlx.Array) {
	temb := te.Embedder.Forward(timesteps)
	proj := te.Proj.Forward(mlx.SiLU(temb))
	B := temb.Dim(0)
	D := temb.Dim(1)
	return temb, mlx.Reshape(proj, B, 6, D)
}

// Decoder is the diffusion transformer: patch-in convolution over the
// concatenated context and hidden latents, a stack of alternating
// sliding/full attention layers under AdaLN modulation, and a transposed
// patch-out convolution back to latent channels.
type Decoder struct {
	ProjIn       *nn.Conv1d          `weight:"proj_in"`
	CondEmbedder *nn.Linear          `weight:"condition_embedder"`
	TimeEmbed    *TimeEmbed          `weight:"time_embed"`
	TimeEmbedR   *TimeEmbed          `weight:"time_embed_r"`
	Layers       []*DecoderLayer     `weight:"layers"`
	NormOutTable *mlx.Array          `weight:"scale_shift_table"` // [1, 2, D]
	ProjOut      *nn.ConvTranspose1d `weight:"proj_out"`

	*Config

	masks *slidingMaskCache
	ropes map[int32]*RoPECache
}

// NewDecoder allocates a decoder for the given configuration.
func NewDecoder(cfg *Config) *Decoder {
	d := &Decoder{Config: cfg}
	d.Layers = make([]*DecoderLayer, cfg.NumLayers)
	d.TimeEmbed = &TimeEmbed{Embedder: &TimestepEmbedding{FreqDim: cfg.TimestepFreqDim}}
	d.TimeEmbedR = &TimeEmbed{Embedder: &TimestepEmbedding{FreqDim: cfg.TimestepFreqDim}}
	d.masks = newSlidingMaskCache(cfg.SlidingWindow)
	d.ropes = make(map[int32]*RoPECache)
	return d
}

// LoadWeights loads decoder parameters from any weight source and pins them.
func (d *Decoder) LoadWeights(weights safetensors.WeightSource) error {
	if err := safetensors.LoadModule(d, weights, ""); err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	d.initComputedFields()
	mlx.Keep(mlx.Collect(d)...)
	return nil
}

func (d *Decoder) initComputedFields() {
	cfg := d.Config
	scale := float32(1.0 / math.Sqrt(float64(cfg.HeadDim)))
	for i, layer := range d.Layers {
		layer.Sliding = i%2 == 1
		layer.Eps = cfg.RMSNormEps
		for _, attn := range []*Attention{layer.SelfAttn, layer.CrossAttn} {
			attn.NumHeads = cfg.NumHeads
			attn.NumKVHeads = cfg.NumKVHeads
			attn.HeadDim = cfg.HeadDim
			attn.Scale = scale
		}
	}
	d.TimeEmbed.Embedder.FreqDim = cfg.TimestepFreqDim
	d.TimeEmbedR.Embedder.FreqDim = cfg.TimestepFreqDim
	d.ProjIn.Stride = cfg.PatchSize
	d.ProjOut.Stride = cfg.PatchSize
}

// rope returns the rotary table for one patched sequence length, building it
// on first use.
func (d *Decoder) rope(seqLen int32) *RoPECache {
	if r, ok := d.ropes[seqLen]; ok {
		return r
	}
	r := ComputeRoPE(seqLen, d.HeadDim, d.RopeTheta)
	d.ropes[seqLen] = r
	return r
}

// Forward predicts the velocity field.
//
//	hidden:    [B, T, C_lat]
//	context:   [B, T, C_ctx]
//	enc:       [B, encL, H_enc]
//	encMask:   [B, encL] 0/1, or nil
//	timestep:  [B] in (0, 1]
//	timestepR: [B]; callers pass the current timestep so the second head
//	           always embeds zero
//
// Returns [B, T, C_lat].
func (d *Decoder) Forward(hidden, context, enc, encMask, timestep, timestepR *mlx.Array, cache *CrossAttnCache) *mlx.Array {
	T := hidden.Dim(1)

	tembT, projT := d.TimeEmbed.Forward(mlx.MulScalar(timestep, 1000.0))
	tembR, projR := d.TimeEmbedR.Forward(mlx.MulScalar(mlx.Sub(timestep, timestepR), 1000.0))
	temb := mlx.Add(tembT, tembR)
	timestepProj := mlx.Add(projT, projR)

	x := mlx.Concatenate([]*mlx.Array{context, hidden}, 2)
	padded := T
	if rem := T % d.PatchSize; rem != 0 {
		pad := d.PatchSize - rem
		x = mlx.Pad(x, []int32{0, 0, 0, pad, 0, 0})
		padded = T + pad
	}
	h := d.ProjIn.Forward(x) // [B, P, D]
	P := padded / d.PatchSize

	cond := d.CondEmbedder.Forward(enc)

	var encAdd *mlx.Array
	if encMask != nil {
		encAdd = EncoderAttentionMask(encMask)
	}

	rope := d.rope(P)
	slidingMask := d.masks.get(P)

	for i, layer := range d.Layers {
		var mask *mlx.Array
		if layer.Sliding {
			mask = slidingMask
		}
		h = layer.Forward(h, timestepProj, rope, mask, cond, encAdd, cache, i)
	}

	normOut := mlx.Add(d.NormOutTable, mlx.ExpandDims(temb, 1)) // [B, 2, D]
	shift := mlx.SliceAxis(normOut, 1, 0, 1)
	scale := mlx.SliceAxis(normOut, 1, 1, 2)
	h = modulate(mlx.RMSNormNoWeight(h, d.RMSNormEps), shift, scale)

	out := d.ProjOut.Forward(h) // [B, P*patch, C_lat]
	if out.Dim(1) != T {
		out = mlx.SliceAxis(out, 1, 0, T)
	}
	return out
}
