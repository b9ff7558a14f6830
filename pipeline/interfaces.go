//go:build mlx

package pipeline

import (
	"context"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
)

// DiTConditions carries the conditioning tensors for one run. Encoder inputs
// may be nil only when the stepper does not require conditioning.
type DiTConditions struct {
	// EncoderHidden is [B, encL, H_enc] (or [1, encL, H_enc] to broadcast).
	EncoderHidden *mlx.Array
	// EncoderMask is [B, encL] with 0/1 entries, or nil for no padding.
	EncoderMask *mlx.Array
	// Context is [B, T, C_ctx] (or leading dim 1 to broadcast).
	Context *mlx.Array
	// NullEncoderHidden is the unconditional embedding for CFG, or nil to
	// disable guidance.
	NullEncoderHidden *mlx.Array
	// InitialLatent is [B, T, C_lat] (or leading dim 1 to broadcast). When
	// set it replaces the seeded noise init.
	InitialLatent *mlx.Array
}

// ConditioningProvider produces the conditioning tensors for a request.
type ConditioningProvider interface {
	Condition(ctx context.Context, params GenerationParams) (*DiTConditions, error)
}

// DiffusionStepper advances the latent by one denoising step.
type DiffusionStepper interface {
	// Step maps the latent at timestep t to the latent at nextT. The final
	// step passes nextT = 0.
	Step(latent *mlx.Array, cond *DiTConditions, t, nextT float32, params GenerationParams) (*mlx.Array, error)

	// RequiresConditioning reports whether Step needs encoder and context
	// inputs.
	RequiresConditioning() bool

	// Reset clears per-run state before a new schedule begins.
	Reset()
}

// VAEDecoder converts latents to waveforms.
type VAEDecoder interface {
	// Decode maps [B, T, latent_dim] to audio [B, L, audio_channels].
	Decode(latent *mlx.Array) *mlx.Array
}

// FakeStepper predicts zero velocity, leaving the initial noise unchanged.
// It needs no conditioning and no weights.
type FakeStepper struct{}

func (FakeStepper) Step(latent *mlx.Array, _ *DiTConditions, _, _ float32, _ GenerationParams) (*mlx.Array, error) {
	return latent, nil
}

func (FakeStepper) RequiresConditioning() bool { return false }

func (FakeStepper) Reset() {}

// FakeVAE emits silent mono audio of the expected length without weights.
type FakeVAE struct{}

func (FakeVAE) Decode(latent *mlx.Array) *mlx.Array {
	B := latent.Dim(0)
	T := latent.Dim(1)
	return mlx.Zeros([]int32{B, T * acestep.SamplesPerFrame, 1}, mlx.DtypeFloat32)
}
