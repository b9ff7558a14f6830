package safetensors

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

// HostTensor is a tensor decoded into host memory.
type HostTensor struct {
	Name  string
	Shape []int32
	Data  []float32
}

// NumElements returns the element count implied by the shape.
func (t *HostTensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= int64(d)
	}
	return n
}

// LoadPickle reads a PyTorch .pt checkpoint into host tensors, keyed by
// state-dict name. All storages are decoded to float32.
func LoadPickle(path string) (map[string]*HostTensor, error) {
	pt, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	dict, ok := pt.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("unexpected checkpoint root %T in %s", pt, path)
	}

	tensors := make(map[string]*HostTensor)
	for _, k := range dict.Keys() {
		name, ok := k.(string)
		if !ok {
			continue
		}
		v := dict.MustGet(k)
		t, ok := v.(*pytorch.Tensor)
		if !ok {
			continue
		}

		shape := make([]int32, len(t.Size))
		for i, dim := range t.Size {
			shape[i] = int32(dim)
		}

		data, err := storageFloats(t.Source)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		tensors[name] = &HostTensor{Name: name, Shape: shape, Data: data}
	}

	if len(tensors) == 0 {
		return nil, fmt.Errorf("no tensors found in %s", path)
	}
	return tensors, nil
}

func storageFloats(storage pytorch.StorageInterface) ([]float32, error) {
	switch s := storage.(type) {
	case *pytorch.FloatStorage:
		return s.Data, nil
	case *pytorch.HalfStorage:
		return s.Data, nil
	case *pytorch.BFloat16Storage:
		return s.Data, nil
	case *pytorch.DoubleStorage:
		f32s := make([]float32, len(s.Data))
		for i, v := range s.Data {
			f32s[i] = float32(v)
		}
		return f32s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %T", storage)
	}
}
