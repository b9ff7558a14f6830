//go:build mlx

package acestep

import (
	"fmt"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/nn"
	"github.com/erichchampion/ace-step-1.5/safetensors"
)

const snakeEps = 1e-9

// Snake1d is the periodic activation x + (1/(beta+eps)) * sin(alpha*x)^2
// with per-channel alpha/beta. With logscale (the default) the learned
// parameters are exponentiated before use.
type Snake1d struct {
	Alpha *mlx.Array `weight:"alpha"`
	Beta  *mlx.Array `weight:"beta"`

	Logscale bool
}

// Forward applies the activation over [B, L, C]. 16-bit inputs are computed
// in float32; exp(alpha) overflows half precision.
func (s *Snake1d) Forward(x *mlx.Array) *mlx.Array {
	origDtype := x.Dtype()
	upcast := origDtype == mlx.DtypeFloat16 || origDtype == mlx.DtypeBFloat16
	if upcast {
		x = mlx.AsType(x, mlx.DtypeFloat32)
	}

	C := s.Alpha.Dim(0)
	alpha := mlx.Reshape(s.Alpha, 1, 1, C)
	beta := mlx.Reshape(s.Beta, 1, 1, C)
	if s.Logscale {
		alpha = mlx.Exp(alpha)
		beta = mlx.Exp(beta)
	}

	sin := mlx.Sin(mlx.Mul(alpha, x))
	out := mlx.Add(x, mlx.Div(mlx.Square(sin), mlx.AddScalar(beta, snakeEps)))

	if upcast {
		out = mlx.AsType(out, origDtype)
	}
	return out
}

// ResidualUnit is a dilated residual block: snake -> conv k7 (dilation d,
// pad 3d) -> snake -> conv k1, with the input center-cropped to the conv
// output length before the residual add.
type ResidualUnit struct {
	Snake1 *Snake1d   `weight:"snake1"`
	Conv1  *nn.Conv1d `weight:"conv1"`
	Snake2 *Snake1d   `weight:"snake2"`
	Conv2  *nn.Conv1d `weight:"conv2"`
}

func (ru *ResidualUnit) Forward(x *mlx.Array) *mlx.Array {
	y := ru.Conv1.Forward(ru.Snake1.Forward(x))
	y = ru.Conv2.Forward(ru.Snake2.Forward(y))

	inLen := x.Dim(1)
	outLen := y.Dim(1)
	if inLen != outLen {
		start := (inLen - outLen) / 2
		x = mlx.SliceAxis(x, 1, start, start+outLen)
	}
	return mlx.Add(x, y)
}

// DecoderBlock upsamples by one ratio: snake -> transposed conv (kernel 2r,
// stride r, pad (r+1)/2) -> three residual units at dilations 1, 3, 9.
type DecoderBlock struct {
	Snake *Snake1d            `weight:"snake"`
	ConvT *nn.ConvTranspose1d `weight:"conv_t"`
	Units []*ResidualUnit     `weight:"units"`
}

func (b *DecoderBlock) Forward(x *mlx.Array) *mlx.Array {
	h := b.ConvT.Forward(b.Snake.Forward(x))
	for _, unit := range b.Units {
		h = unit.Forward(h)
	}
	return h
}

// OobleckDecoder converts acoustic latents [B, T, latent_dim] to a stereo
// waveform. Transposed-conv arithmetic can overshoot the target length by a
// few samples; callers trim to the exact expected count.
type OobleckDecoder struct {
	ConvIn   *nn.Conv1d      `weight:"conv_in"`
	Blocks   []*DecoderBlock `weight:"blocks"`
	SnakeOut *Snake1d        `weight:"snake_out"`
	ConvOut  *nn.Conv1d      `weight:"conv_out"`

	*VAEConfig
}

// NewOobleckDecoder allocates the decoder structure for a configuration.
func NewOobleckDecoder(cfg *VAEConfig) *OobleckDecoder {
	d := &OobleckDecoder{VAEConfig: cfg}
	d.Blocks = make([]*DecoderBlock, len(cfg.UpsampleRates))
	for i := range d.Blocks {
		d.Blocks[i] = &DecoderBlock{Units: make([]*ResidualUnit, 3)}
	}
	return d
}

// LoadWeights loads decoder parameters and fixes up stride/padding geometry.
func (d *OobleckDecoder) LoadWeights(weights safetensors.WeightSource) error {
	if err := safetensors.LoadModule(d, weights, ""); err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	d.initComputedFields()
	mlx.Keep(mlx.Collect(d)...)
	return nil
}

func (d *OobleckDecoder) initComputedFields() {
	d.ConvIn.Padding = 3
	d.ConvOut.Padding = 3
	dilations := []int32{1, 3, 9}
	for i, block := range d.Blocks {
		r := d.UpsampleRates[i]
		block.Snake.Logscale = true
		block.ConvT.Stride = r
		block.ConvT.Padding = (r + 1) / 2
		for j, unit := range block.Units {
			dil := dilations[j]
			unit.Snake1.Logscale = true
			unit.Snake2.Logscale = true
			unit.Conv1.Dilation = dil
			unit.Conv1.Padding = 3 * dil
		}
	}
	d.SnakeOut.Logscale = true
}

// Decode maps latents [B, T, latent_dim] to audio [B, L, audio_channels].
func (d *OobleckDecoder) Decode(latent *mlx.Array) *mlx.Array {
	h := d.ConvIn.Forward(latent)
	for _, block := range d.Blocks {
		h = block.Forward(h)
	}
	h = d.SnakeOut.Forward(h)
	return d.ConvOut.Forward(h)
}
