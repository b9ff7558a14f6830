//go:build mlx

package safetensors

import (
	"fmt"
	"sort"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

// Checkpoint indexes tensors across one or more safetensors shard files.
// Opening parses only the JSON headers; shard data is memory-mapped lazily
// on first access and the handles stay open for the checkpoint's lifetime.
type Checkpoint struct {
	source map[string]string     // tensor name -> shard path
	info   map[string]TensorInfo // tensor name -> header metadata
	shards map[string]*mlx.SafetensorsFile
}

// OpenShards builds a tensor index over the given shard files.
func OpenShards(paths ...string) (*Checkpoint, error) {
	c := &Checkpoint{
		source: make(map[string]string),
		info:   make(map[string]TensorInfo),
		shards: make(map[string]*mlx.SafetensorsFile),
	}
	for _, path := range paths {
		header, err := ParseHeader(path)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for name, ti := range header {
			if prev, dup := c.source[name]; dup {
				return nil, fmt.Errorf("tensor %q appears in both %s and %s", name, prev, path)
			}
			c.source[name] = path
			c.info[name] = ti
		}
	}
	if len(c.source) == 0 {
		return nil, fmt.Errorf("no tensors in %v", paths)
	}
	return c, nil
}

func (c *Checkpoint) shard(path string) (*mlx.SafetensorsFile, error) {
	if f, ok := c.shards[path]; ok {
		return f, nil
	}
	f, err := mlx.LoadSafetensorsNative(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	c.shards[path] = f
	return f, nil
}

// GetTensor returns the named tensor, mapping its shard on first use.
func (c *Checkpoint) GetTensor(name string) (*mlx.Array, error) {
	path, ok := c.source[name]
	if !ok {
		return nil, fmt.Errorf("tensor %q not in checkpoint", name)
	}
	f, err := c.shard(path)
	if err != nil {
		return nil, err
	}
	arr := f.Get(name)
	if arr == nil {
		return nil, fmt.Errorf("tensor %q indexed but absent from %s", name, path)
	}
	return arr, nil
}

// HasTensor reports whether the checkpoint indexes the named tensor.
func (c *Checkpoint) HasTensor(name string) bool {
	_, ok := c.source[name]
	return ok
}

// ListTensors returns all indexed tensor names, sorted.
func (c *Checkpoint) ListTensors() []string {
	names := make([]string, 0, len(c.source))
	for name := range c.source {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the header metadata for one tensor.
func (c *Checkpoint) Info(name string) (TensorInfo, bool) {
	ti, ok := c.info[name]
	return ti, ok
}

// Close releases every mapped shard. Tensors obtained from the checkpoint
// are invalid afterwards unless kept.
func (c *Checkpoint) Close() {
	for path, f := range c.shards {
		f.Free()
		delete(c.shards, path)
	}
}
