package pipeline

import (
	"fmt"
	"math"

	"github.com/erichchampion/ace-step-1.5/model/acestep"
)

// GenerationParams describes one caption+lyrics to audio request. Start from
// DefaultGenerationParams: zero values are not replaced by defaults, and a
// zero GuidanceScale or LatentRescale fails Validate.
type GenerationParams struct {
	Caption string `json:"caption"`
	Lyrics  string `json:"lyrics"`

	// TaskType names the generation task. Only "text2music" drives behavior
	// today; other values pass through to the conditioning provider.
	TaskType string `json:"task_type"`

	// SrcAudioPath points at a reference latent for tasks that edit existing
	// audio. Unused by text2music.
	SrcAudioPath string `json:"src_audio_path,omitempty"`

	// RepaintStart and RepaintEnd bound the edit window in seconds for
	// repaint-style tasks.
	RepaintStart float32 `json:"repaint_start"`
	RepaintEnd   float32 `json:"repaint_end"`

	// BPM hints the tempo to the conditioning text. Zero omits the hint.
	BPM int `json:"bpm"`

	// LM sampling knobs, consumed by conditioning providers that run the
	// language-model planner. Zero values take the provider defaults.
	LMTemperature float32 `json:"lm_temperature"`
	LMTopK        int     `json:"lm_top_k"`
	LMTopP        float32 `json:"lm_top_p"`

	// Duration in seconds. Non-positive requests the default latent length.
	Duration float32 `json:"duration"`

	// InferenceSteps selects a uniform shifted schedule when positive and no
	// explicit Timesteps are given.
	InferenceSteps int `json:"inference_steps"`

	// Timesteps overrides the schedule entirely. Values are snapped to the
	// admissible table.
	Timesteps []float32 `json:"timesteps,omitempty"`

	// Seed below zero draws fresh entropy per run.
	Seed int64 `json:"seed"`

	Shift         float32 `json:"shift"`
	GuidanceScale float32 `json:"guidance_scale"`

	// CFG is applied only while the current timestep lies inside
	// [CFGIntervalStart, CFGIntervalEnd].
	CFGIntervalStart float32 `json:"cfg_interval_start"`
	CFGIntervalEnd   float32 `json:"cfg_interval_end"`

	// LatentShift and LatentRescale are applied to the denoised latent
	// before decoding: latent = latent*rescale + shift.
	LatentShift   float32 `json:"latent_shift"`
	LatentRescale float32 `json:"latent_rescale"`
}

// DefaultGenerationParams returns the turbo-model defaults.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		TaskType:         "text2music",
		Duration:         -1,
		Seed:             -1,
		Shift:            3,
		GuidanceScale:    7.5,
		CFGIntervalStart: 0,
		CFGIntervalEnd:   1,
		LatentRescale:    1,
	}
}

// GenerationConfig holds batch-level settings shared across one call.
type GenerationConfig struct {
	// BatchSize of 0 means 1.
	BatchSize int `json:"batch_size"`

	// Seeds optionally fixes per-element seeds; length must match BatchSize
	// when set.
	Seeds []int64 `json:"seeds,omitempty"`

	// Progress, when set, is called after each completed denoising step.
	Progress ProgressFunc `json:"-"`
}

// ProgressFunc reports denoising progress. step counts from 1 to total; t is
// the timestep just consumed.
type ProgressFunc func(step, total int, t float32)

// MaxDuration is the longest clip a single run will produce, in seconds.
const MaxDuration = 600

// Validate checks parameter ranges before any tensor work begins.
func (p *GenerationParams) Validate() error {
	if p.GuidanceScale < 1 {
		return fmt.Errorf("guidance scale %g below 1 (1 disables guidance)", p.GuidanceScale)
	}
	if p.CFGIntervalStart > p.CFGIntervalEnd {
		return fmt.Errorf("cfg interval [%g, %g] is inverted", p.CFGIntervalStart, p.CFGIntervalEnd)
	}
	if p.LatentRescale == 0 {
		return fmt.Errorf("latent rescale must be nonzero")
	}
	if p.Duration > MaxDuration {
		return fmt.Errorf("duration %gs exceeds the %ds limit", p.Duration, MaxDuration)
	}
	if p.BPM != 0 && (p.BPM < 30 || p.BPM > 300) {
		return fmt.Errorf("bpm %d outside [30, 300]", p.BPM)
	}
	if p.RepaintStart < 0 || p.RepaintEnd < p.RepaintStart {
		return fmt.Errorf("repaint window [%g, %g] is invalid", p.RepaintStart, p.RepaintEnd)
	}
	if p.LMTemperature < 0 {
		return fmt.Errorf("lm temperature %g is negative", p.LMTemperature)
	}
	if p.LMTopP < 0 || p.LMTopP > 1 {
		return fmt.Errorf("lm top-p %g outside [0, 1]", p.LMTopP)
	}
	for _, t := range p.Timesteps {
		if t < 0 || t > 1 {
			return fmt.Errorf("timestep %g outside [0, 1]", t)
		}
	}
	return nil
}

// LatentFrames converts a duration in seconds to the latent frame count.
// Non-positive durations select the default length; everything else rounds
// up to whole frames and is floored at the model minimum.
func LatentFrames(duration float32) int32 {
	if duration <= 0 {
		return acestep.DefaultLatentFrames
	}
	frames := int32(math.Ceil(float64(duration) * float64(acestep.SampleRate) / float64(acestep.SamplesPerFrame)))
	if frames < acestep.MinLatentFrames {
		return acestep.MinLatentFrames
	}
	return frames
}

// AudioResult is one decoded batch element.
type AudioResult struct {
	// Samples is interleaved by channel.
	Samples    []float32
	SampleRate int32
	Channels   int32
	Seed       int64
}

// Duration returns the clip length in seconds.
func (r *AudioResult) Duration() float32 {
	if r.Channels == 0 {
		return 0
	}
	return float32(len(r.Samples)) / float32(r.Channels) / float32(r.SampleRate)
}

// Status summarizes a finished run for callers that report rather than
// propagate.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusFromError converts a run outcome into a reportable status.
func StatusFromError(err error) Status {
	if err == nil {
		return Status{Success: true, Message: "ok"}
	}
	return Status{Success: false, Error: err.Error()}
}
