//go:build mlx

package pipeline

import (
	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
)

// DiTStepper advances latents with the diffusion transformer under APG
// classifier-free guidance.
type DiTStepper struct {
	Model    *acestep.Decoder
	Guidance *APGState

	cache *acestep.CrossAttnCache
}

// NewDiTStepper wraps a loaded decoder.
func NewDiTStepper(model *acestep.Decoder) *DiTStepper {
	return &DiTStepper{
		Model:    model,
		Guidance: NewAPGState(),
		cache:    acestep.NewCrossAttnCache(model.NumLayers),
	}
}

func (s *DiTStepper) RequiresConditioning() bool { return true }

// Reset clears the guidance momentum and the cross-attention cache so a new
// schedule starts from clean state.
func (s *DiTStepper) Reset() {
	s.Guidance.Reset()
	s.cache.Invalidate()
	s.cache = acestep.NewCrossAttnCache(s.Model.NumLayers)
}

// cfgActive reports whether guidance doubles the batch at timestep t.
func cfgActive(cond *DiTConditions, t float32, params GenerationParams) bool {
	return params.GuidanceScale > 1 &&
		cond.NullEncoderHidden != nil &&
		t >= params.CFGIntervalStart && t <= params.CFGIntervalEnd
}

// Step predicts velocity at t and advances the latent to nextT with one Euler
// update. The final step passes nextT = 0, which integrates all the way to
// the clean latent.
func (s *DiTStepper) Step(latent *mlx.Array, cond *DiTConditions, t, nextT float32, params GenerationParams) (*mlx.Array, error) {
	B := latent.Dim(0)

	var velocity *mlx.Array
	if cfgActive(cond, t, params) {
		velocity = s.guidedVelocity(latent, cond, t, params)
	} else {
		timestep := mlx.Full(t, B)
		velocity = s.Model.Forward(latent, cond.Context, cond.EncoderHidden, cond.EncoderMask, timestep, timestep, s.cache)
	}

	next := mlx.Sub(latent, mlx.MulScalar(velocity, t-nextT))
	mlx.Eval(next)
	return next, nil
}

// guidedVelocity runs conditional and unconditional branches as one doubled
// batch and combines them with APG. The cross-attention cache is disabled
// here: the doubled encoder sequence changes across the CFG interval
// boundary, so cached projections would go stale.
func (s *DiTStepper) guidedVelocity(latent *mlx.Array, cond *DiTConditions, t float32, params GenerationParams) *mlx.Array {
	s.cache.Disable()

	B := latent.Dim(0)
	encL := cond.EncoderHidden.Dim(1)
	H := cond.EncoderHidden.Dim(2)

	hidden := mlx.Concatenate([]*mlx.Array{latent, latent}, 0)
	context := mlx.Concatenate([]*mlx.Array{cond.Context, cond.Context}, 0)

	null := mlx.BroadcastTo(cond.NullEncoderHidden, []int32{B, encL, H})
	enc := mlx.Concatenate([]*mlx.Array{cond.EncoderHidden, null}, 0)

	var encMask *mlx.Array
	if cond.EncoderMask != nil {
		encMask = mlx.Concatenate([]*mlx.Array{cond.EncoderMask, cond.EncoderMask}, 0)
	}

	timestep := mlx.Full(t, 2*B)
	v := s.Model.Forward(hidden, context, enc, encMask, timestep, timestep, s.cache)

	condPred := mlx.SliceAxis(v, 0, 0, B)
	uncondPred := mlx.SliceAxis(v, 0, B, 2*B)
	return s.Guidance.Apply(condPred, uncondPred, params.GuidanceScale)
}
