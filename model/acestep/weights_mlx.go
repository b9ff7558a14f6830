//go:build mlx

package acestep

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/erichchampion/ace-step-1.5/mlx"
	"github.com/erichchampion/ace-step-1.5/safetensors"
)

// Module names whose 3-D weights need layout conversion from the source
// framework convention to the runtime [out, kernel, in] convention.
var (
	conv1dModules = map[string]bool{
		"proj_in":  true,
		"conv_in":  true,
		"conv_out": true,
		"conv1":    true,
		"conv2":    true,
	}
	convTranspose1dModules = map[string]bool{
		"proj_out": true,
		"conv_t":   true,
	}
)

// NormalizeTensorLayout converts a parameter's physical layout. Plain convs
// arrive as [out, in, kernel], transposed convs as [in, out, kernel]; both
// become [out, kernel, in]. Everything else passes through.
func NormalizeTensorLayout(name string, arr *mlx.Array) *mlx.Array {
	if !strings.HasSuffix(name, ".weight") || arr.Ndim() != 3 {
		return arr
	}
	segs := strings.Split(name, ".")
	if len(segs) < 2 {
		return arr
	}
	owner := segs[len(segs)-2]
	switch {
	case conv1dModules[owner]:
		return mlx.Transpose(arr, 0, 2, 1)
	case convTranspose1dModules[owner]:
		return mlx.Transpose(arr, 1, 2, 0)
	}
	return arr
}

// NormalizedWeights adapts a raw checkpoint to the runtime naming and layout
// conventions. When the checkpoint is a full model, only the decoder
// sub-tree is exposed.
type NormalizedWeights struct {
	src    safetensors.WeightSource
	byName map[string]string
	names  []string
}

// NormalizeWeights wraps a raw checkpoint source.
func NormalizeWeights(src safetensors.WeightSource) *NormalizedWeights {
	selected := SelectSubtree(src.ListTensors(), DecoderPrefix)
	w := &NormalizedWeights{src: src, byName: make(map[string]string, len(selected))}
	for orig, name := range selected {
		if IsNullConditionKey(orig) {
			continue
		}
		w.byName[NormalizeKey(name)] = orig
	}
	w.names = make([]string, 0, len(w.byName))
	for name := range w.byName {
		w.names = append(w.names, name)
	}
	sort.Strings(w.names)
	return w
}

func (w *NormalizedWeights) GetTensor(name string) (*mlx.Array, error) {
	orig, ok := w.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tensor %s", name)
	}
	arr, err := w.src.GetTensor(orig)
	if err != nil {
		return nil, err
	}
	return NormalizeTensorLayout(name, arr), nil
}

func (w *NormalizedWeights) ListTensors() []string { return w.names }

func (w *NormalizedWeights) HasTensor(name string) bool {
	_, ok := w.byName[name]
	return ok
}

// NullConditionEmbedding returns the learned CFG null embedding reshaped to
// [1, 1, H], or nil when the checkpoint carries none.
func (w *NormalizedWeights) NullConditionEmbedding() (*mlx.Array, error) {
	for _, key := range w.src.ListTensors() {
		if !IsNullConditionKey(key) {
			continue
		}
		arr, err := w.src.GetTensor(key)
		if err != nil {
			return nil, err
		}
		H := arr.Dim(arr.Ndim() - 1)
		arr = mlx.Reshape(arr, 1, 1, H)
		mlx.Keep(arr)
		return arr, nil
	}
	return nil, nil
}

// OpenCheckpoint opens a checkpoint file by extension: native safetensors,
// or a pickled archive for everything else.
func OpenCheckpoint(path string) (safetensors.WeightSource, error) {
	switch filepath.Ext(path) {
	case ".safetensors":
		return safetensors.OpenShards(path)
	default:
		tensors, err := safetensors.LoadPickle(path)
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", path, err)
		}
		return safetensors.NewHostWeights(tensors), nil
	}
}

// LoadSilenceLatent reads the auxiliary silence latent file: a single
// [1, T_max, 64] tensor. Its only consumer is the precomputed conditioning
// provider, which uses it as the initial latent for editing tasks; it does
// not feed the context of text-to-music runs.
func LoadSilenceLatent(path string) (*mlx.Array, error) {
	f, err := mlx.LoadSafetensorsNative(path)
	if err != nil {
		return nil, fmt.Errorf("read silence latent %s: %w", path, err)
	}
	arr := f.Get(SilenceLatentKey)
	if arr == nil {
		return nil, fmt.Errorf("silence latent %s has no %q tensor", path, SilenceLatentKey)
	}
	if arr.Ndim() != 3 || arr.Dim(2) != LatentChannels {
		return nil, fmt.Errorf("silence latent shape %v, want [1, T, %d]", arr.Shape(), LatentChannels)
	}
	mlx.Keep(arr)
	return arr, nil
}
