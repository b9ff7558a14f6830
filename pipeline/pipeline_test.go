//go:build mlx

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
)

func TestRunWithFakeComponents(t *testing.T) {
	p := New(nil, FakeStepper{}, FakeVAE{})

	params := DefaultGenerationParams()
	params.Duration = 10 // 250 frames
	params.Seed = 42

	var steps int
	results, err := p.Run(context.Background(), params, GenerationConfig{
		BatchSize: 2,
		Seeds:     []int64{7, 8},
		Progress:  func(step, total int, t float32) { steps = step },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := len(Schedule(params.Shift, params.InferenceSteps, params.Timesteps)); steps != want {
		t.Errorf("progress reached step %d, want %d", steps, want)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	wantSamples := int(LatentFrames(params.Duration)) * int(acestep.SamplesPerFrame)
	for i, r := range results {
		if len(r.Samples) != wantSamples {
			t.Errorf("result %d has %d samples, want %d", i, len(r.Samples), wantSamples)
		}
		if r.SampleRate != acestep.SampleRate {
			t.Errorf("result %d sample rate = %d", i, r.SampleRate)
		}
		if r.Channels != 1 {
			t.Errorf("result %d channels = %d, want 1 from the fake decoder", i, r.Channels)
		}
	}
	if results[0].Seed != 7 || results[1].Seed != 8 {
		t.Errorf("seeds = %d, %d, want 7, 8", results[0].Seed, results[1].Seed)
	}
}

func TestRunCanceled(t *testing.T) {
	p := New(nil, FakeStepper{}, FakeVAE{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, DefaultGenerationParams(), GenerationConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run on canceled context = %v, want context.Canceled", err)
	}
}

func TestRunSeedCountMismatch(t *testing.T) {
	p := New(nil, FakeStepper{}, FakeVAE{})
	_, err := p.Run(context.Background(), DefaultGenerationParams(), GenerationConfig{
		BatchSize: 2,
		Seeds:     []int64{1},
	})
	if err == nil {
		t.Error("mismatched seed count should fail")
	}
}

func TestAlignBatch(t *testing.T) {
	enc := mlx.Zeros([]int32{1, 8, acestep.EncoderDim}, mlx.DtypeFloat32)
	ctxLat := mlx.Zeros([]int32{1, 16, acestep.ContextChannels}, mlx.DtypeFloat32)
	cond := &DiTConditions{EncoderHidden: enc, Context: ctxLat}

	aligned, err := alignBatch(cond, 3)
	if err != nil {
		t.Fatalf("alignBatch: %v", err)
	}
	if aligned.EncoderHidden.Dim(0) != 3 {
		t.Errorf("encoder leading dim = %d, want 3", aligned.EncoderHidden.Dim(0))
	}
	if aligned.Context.Dim(0) != 3 {
		t.Errorf("context leading dim = %d, want 3", aligned.Context.Dim(0))
	}

	bad := &DiTConditions{
		EncoderHidden: mlx.Zeros([]int32{2, 8, acestep.EncoderDim}, mlx.DtypeFloat32),
		Context:       ctxLat,
	}
	_, err = alignBatch(bad, 3)
	if KindOf(err) != KindConditionBatchMismatch {
		t.Errorf("KindOf = %v, want %v", KindOf(err), KindConditionBatchMismatch)
	}
}
