//go:build mlx

package safetensors

import (
	"fmt"
	"sort"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

// ToArray copies a host tensor onto the compute device.
func (t *HostTensor) ToArray() *mlx.Array {
	return mlx.NewArray(t.Data, t.Shape)
}

// HostWeights exposes a set of host tensors through the WeightSource
// interface so .pt checkpoints load with the same module loader as
// safetensors directories.
type HostWeights struct {
	tensors map[string]*HostTensor
	cache   map[string]*mlx.Array
}

// NewHostWeights wraps decoded host tensors as a WeightSource.
func NewHostWeights(tensors map[string]*HostTensor) *HostWeights {
	return &HostWeights{
		tensors: tensors,
		cache:   make(map[string]*mlx.Array),
	}
}

// GetTensor copies the named tensor onto the device, caching the result.
func (hw *HostWeights) GetTensor(name string) (*mlx.Array, error) {
	if arr, ok := hw.cache[name]; ok {
		return arr, nil
	}
	t, ok := hw.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not found", name)
	}
	arr := t.ToArray()
	mlx.Keep(arr)
	hw.cache[name] = arr
	return arr, nil
}

// ListTensors returns all tensor names.
func (hw *HostWeights) ListTensors() []string {
	names := make([]string, 0, len(hw.tensors))
	for name := range hw.tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTensor checks if a tensor exists.
func (hw *HostWeights) HasTensor(name string) bool {
	_, ok := hw.tensors[name]
	return ok
}
