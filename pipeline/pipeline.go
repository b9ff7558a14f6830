//go:build mlx

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/erichchampion/ace-step-1.5/logutil"
	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
)

// Pipeline runs the full caption+lyrics to audio operation: schedule, noise,
// denoising loop, latent post-processing, decode, and host-side finishing.
type Pipeline struct {
	Conditioner ConditioningProvider
	Stepper     DiffusionStepper
	Decoder     VAEDecoder
}

// New assembles a pipeline. Conditioner may be nil when the stepper does not
// require conditioning.
func New(conditioner ConditioningProvider, stepper DiffusionStepper, decoder VAEDecoder) *Pipeline {
	return &Pipeline{Conditioner: conditioner, Stepper: stepper, Decoder: decoder}
}

// Run generates one batch of audio clips.
func (p *Pipeline) Run(ctx context.Context, params GenerationParams, config GenerationConfig) ([]AudioResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	batch := config.BatchSize
	if batch <= 0 {
		batch = 1
	}
	if len(config.Seeds) > 0 && len(config.Seeds) != batch {
		return nil, fmt.Errorf("got %d seeds for batch size %d", len(config.Seeds), batch)
	}

	cond, err := p.conditions(ctx, params, int32(batch))
	if err != nil {
		return nil, err
	}

	schedule := Schedule(params.Shift, params.InferenceSteps, params.Timesteps)
	if !ValidateSchedule(schedule) {
		return nil, fmt.Errorf("schedule %v is not strictly decreasing in (0, 1]", schedule)
	}

	T := LatentFrames(params.Duration)
	seeds := resolveSeeds(params, config, batch)
	var latent *mlx.Array
	if cond.InitialLatent != nil {
		if cond.InitialLatent.Ndim() != 3 || cond.InitialLatent.Dim(1) != T ||
			cond.InitialLatent.Dim(2) != acestep.LatentChannels {
			return nil, Errorf(KindInvalidLatentShape, "initial latent shape %v, want [B, %d, %d]",
				cond.InitialLatent.Shape(), T, acestep.LatentChannels)
		}
		latent = cond.InitialLatent
	} else {
		latent = initialNoise(int32(batch), T, seeds)
	}

	runID := uuid.NewString()
	slog.Info("generate", "id", runID, "batch", batch, "frames", T, "steps", len(schedule),
		"guidance", params.GuidanceScale, "shift", params.Shift)

	p.Stepper.Reset()
	start := time.Now()
	for i, t := range schedule {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var nextT float32
		if i+1 < len(schedule) {
			nextT = schedule[i+1]
		}
		latent, err = p.Stepper.Step(latent, cond, t, nextT, params)
		if err != nil {
			return nil, err
		}
		logutil.Trace("step", "i", i+1, "of", len(schedule), "t", t)
		if config.Progress != nil {
			config.Progress(i+1, len(schedule), t)
		}
	}
	slog.Info("denoised", "id", runID, "steps", len(schedule), "elapsed", time.Since(start))

	if params.LatentRescale != 1 {
		latent = mlx.MulScalar(latent, params.LatentRescale)
	}
	if params.LatentShift != 0 {
		latent = mlx.AddScalar(latent, params.LatentShift)
	}

	if latent.Ndim() != 3 || latent.Dim(2) != acestep.LatentChannels {
		return nil, Errorf(KindInvalidLatentShape, "latent shape %v, want [B, T, %d]",
			latent.Shape(), acestep.LatentChannels)
	}

	audio := p.Decoder.Decode(latent)
	switch audio.Ndim() {
	case 2:
		audio = mlx.ExpandDims(audio, 2)
	case 3:
	default:
		return nil, Errorf(KindInvalidDecodedAudioShape, "decoded audio shape %v, want rank 2 or 3",
			audio.Shape())
	}
	if want := T * acestep.SamplesPerFrame; audio.Dim(1) > want {
		audio = mlx.SliceAxis(audio, 1, 0, want)
	}
	audio = mlx.AsType(audio, mlx.DtypeFloat32)
	mlx.Eval(audio)

	return extractResults(audio, seeds), nil
}

// conditions fetches and batch-aligns conditioning, or returns empty
// conditions for steppers that need none.
func (p *Pipeline) conditions(ctx context.Context, params GenerationParams, batch int32) (*DiTConditions, error) {
	if !p.Stepper.RequiresConditioning() {
		return &DiTConditions{}, nil
	}
	if p.Conditioner == nil {
		return nil, Errorf(KindMissingConditioning, "stepper requires encoder and context inputs, none configured")
	}
	cond, err := p.Conditioner.Condition(ctx, params)
	if err != nil {
		return nil, err
	}
	if cond == nil || cond.EncoderHidden == nil || cond.Context == nil {
		return nil, Errorf(KindMissingConditioning, "conditioning provider returned nil encoder or context")
	}
	return alignBatch(cond, batch)
}

// alignBatch broadcasts leading-dim-1 conditioning to the batch size.
// Any other mismatch is fatal.
func alignBatch(cond *DiTConditions, batch int32) (*DiTConditions, error) {
	out := *cond
	align := func(name string, a *mlx.Array) (*mlx.Array, error) {
		if a == nil {
			return nil, nil
		}
		switch a.Dim(0) {
		case batch:
			return a, nil
		case 1:
			shape := append([]int32(nil), a.Shape()...)
			shape[0] = batch
			return mlx.BroadcastTo(a, shape), nil
		default:
			return nil, Errorf(KindConditionBatchMismatch, "%s has leading dim %d, want %d or 1",
				name, a.Dim(0), batch)
		}
	}
	var err error
	if out.EncoderHidden, err = align("encoder hidden states", cond.EncoderHidden); err != nil {
		return nil, err
	}
	if out.EncoderMask, err = align("encoder mask", cond.EncoderMask); err != nil {
		return nil, err
	}
	if out.Context, err = align("context latent", cond.Context); err != nil {
		return nil, err
	}
	if out.InitialLatent, err = align("initial latent", cond.InitialLatent); err != nil {
		return nil, err
	}
	return &out, nil
}

// resolveSeeds fixes one seed per batch element so every clip is
// reproducible independently.
func resolveSeeds(params GenerationParams, config GenerationConfig, batch int) []int64 {
	seeds := make([]int64, batch)
	for i := range seeds {
		switch {
		case len(config.Seeds) > 0:
			seeds[i] = config.Seeds[i]
		case params.Seed >= 0:
			seeds[i] = params.Seed + int64(i)
		default:
			seeds[i] = time.Now().UnixNano() + int64(i)
		}
	}
	return seeds
}

// initialNoise draws per-element gaussian latents and stacks them along the
// batch axis.
func initialNoise(batch, frames int32, seeds []int64) *mlx.Array {
	shape := []int32{1, frames, acestep.LatentChannels}
	elems := make([]*mlx.Array, batch)
	for i := range elems {
		elems[i] = mlx.RandomNormal(shape, uint64(seeds[i]))
	}
	if batch == 1 {
		return elems[0]
	}
	return mlx.Concatenate(elems, 0)
}

// extractResults copies decoded audio to the host and peak-normalizes each
// batch element.
func extractResults(audio *mlx.Array, seeds []int64) []AudioResult {
	B := audio.Dim(0)
	channels := audio.Dim(2)
	results := make([]AudioResult, B)
	for b := int32(0); b < B; b++ {
		elem := mlx.SliceAxis(audio, 0, b, b+1)
		mlx.Eval(elem)
		samples := append([]float32(nil), elem.Data()...)
		peakNormalize(samples)
		results[b] = AudioResult{
			Samples:    samples,
			SampleRate: acestep.SampleRate,
			Channels:   channels,
			Seed:       seeds[b],
		}
	}
	return results
}

// peakNormalize scales samples down so the peak sits at 1.0. Quiet clips are
// left untouched.
func peakNormalize(samples []float32) {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak <= 1 || peak == 0 {
		return
	}
	inv := 1 / peak
	for i := range samples {
		samples[i] *= inv
	}
}
