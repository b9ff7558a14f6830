//go:build mlx

package pipeline

import (
	"context"
	"fmt"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
	"github.com/erichchampion/ace-step-1.5/safetensors"
)

// Tensor names in an exported conditioning file.
const (
	keyEncoderHidden = "encoder_hidden_states"
	keyEncoderMask   = "encoder_attention_mask"
	keyContext       = "context_latent"
	keyNullEmb       = "null_condition_emb"
)

// PrecomputedProvider serves conditioning tensors exported ahead of time by
// the text-encoder toolchain. The language models run outside this engine, so
// a request's caption and lyrics must already be baked into the file.
type PrecomputedProvider struct {
	// Path of the safetensors file holding the exported tensors.
	Path string

	// Null is the checkpoint's learned null embedding [1, 1, H_enc], used
	// when the file carries no null_condition_emb of its own.
	Null *mlx.Array

	// Silence is the model's silence latent [1, T_max, C_lat]. Editing
	// tasks start denoising from it when no source audio is exported.
	Silence *mlx.Array
}

// Condition loads the exported tensors and adapts the context latent to the
// requested length. The mask and the null embedding are optional keys.
func (p *PrecomputedProvider) Condition(ctx context.Context, params GenerationParams) (*DiTConditions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := safetensors.Open(p.Path)
	if err != nil {
		return nil, WrapErr(KindWeightFormat, err, "open conditioning file %s", p.Path)
	}

	enc, err := readTensor(f, keyEncoderHidden, 3)
	if err != nil {
		return nil, err
	}
	cond := &DiTConditions{EncoderHidden: enc}

	if f.HasTensor(keyEncoderMask) {
		if cond.EncoderMask, err = readTensor(f, keyEncoderMask, 2); err != nil {
			return nil, err
		}
	}
	if f.HasTensor(keyNullEmb) {
		if cond.NullEncoderHidden, err = readTensor(f, keyNullEmb, 3); err != nil {
			return nil, err
		}
	} else {
		cond.NullEncoderHidden = p.Null
	}

	frames := LatentFrames(params.Duration)
	rawCtx, err := readTensor(f, keyContext, 3)
	if err != nil {
		return nil, err
	}
	if cond.Context, err = fitContext(rawCtx, frames); err != nil {
		return nil, err
	}

	if editingTask(params.TaskType) && p.Silence != nil {
		if cond.InitialLatent, err = fitSilence(p.Silence, frames); err != nil {
			return nil, err
		}
	}
	return cond, nil
}

func editingTask(task string) bool {
	return task != "" && task != "text2music"
}

func readTensor(f *safetensors.File, name string, rank int) (*mlx.Array, error) {
	data, shape, err := f.ReadFloat32(name)
	if err != nil {
		return nil, WrapErr(KindWeightFormat, err, "read %s", name)
	}
	if len(shape) != rank {
		return nil, Errorf(KindWeightFormat, "%s has rank %d, want %d", name, len(shape), rank)
	}
	arr := mlx.NewArray(data, shape)
	mlx.Keep(arr)
	return arr, nil
}

// fitContext stretches or trims the stored context latent to the frame count
// of the current request. A single stored frame tiles across the whole clip.
func fitContext(c *mlx.Array, frames int32) (*mlx.Array, error) {
	if c.Dim(2) != acestep.ContextChannels {
		return nil, Errorf(KindWeightFormat, "%s has %d channels, want %d",
			keyContext, c.Dim(2), acestep.ContextChannels)
	}
	switch T := c.Dim(1); {
	case T == frames:
		return c, nil
	case T == 1:
		return mlx.Tile(c, []int32{1, frames, 1}), nil
	case T > frames:
		return mlx.SliceAxis(c, 1, 0, frames), nil
	default:
		return nil, fmt.Errorf("context latent has %d frames, request needs %d", T, frames)
	}
}

// fitSilence trims the silence latent to the requested frame count.
func fitSilence(s *mlx.Array, frames int32) (*mlx.Array, error) {
	if s.Ndim() != 3 || s.Dim(2) != acestep.LatentChannels {
		return nil, Errorf(KindInvalidLatentShape, "silence latent shape %v, want [1, T, %d]",
			s.Shape(), acestep.LatentChannels)
	}
	if s.Dim(1) < frames {
		return nil, fmt.Errorf("silence latent has %d frames, request needs %d", s.Dim(1), frames)
	}
	if s.Dim(1) == frames {
		return s, nil
	}
	return mlx.SliceAxis(s, 1, 0, frames), nil
}
