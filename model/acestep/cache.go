//go:build mlx

package acestep

import "github.com/erichchampion/ace-step-1.5/mlx"

// CrossAttnCache holds per-layer encoder K/V projections for one generation
// run. It is owned by the stepper and passed down the call stack; the layers
// never retain it. Under classifier-free guidance the doubled batch breaks
// the 1:1 correspondence the cache assumes, so the caller disables it.
type CrossAttnCache struct {
	keys     []*mlx.Array
	values   []*mlx.Array
	disabled bool
}

// NewCrossAttnCache creates an empty cache for numLayers layers.
func NewCrossAttnCache(numLayers int32) *CrossAttnCache {
	return &CrossAttnCache{
		keys:   make([]*mlx.Array, numLayers),
		values: make([]*mlx.Array, numLayers),
	}
}

// Disable turns the cache into a pass-through; K/V are recomputed each step.
func (c *CrossAttnCache) Disable() { c.disabled = true }

// Enabled reports whether the cache stores projections.
func (c *CrossAttnCache) Enabled() bool { return c != nil && !c.disabled }

func (c *CrossAttnCache) get(layer int) (k, v *mlx.Array, ok bool) {
	if !c.Enabled() {
		return nil, nil, false
	}
	k, v = c.keys[layer], c.values[layer]
	return k, v, k != nil && v != nil
}

func (c *CrossAttnCache) put(layer int, k, v *mlx.Array) {
	if !c.Enabled() {
		return
	}
	mlx.Keep(k, v)
	c.keys[layer] = k
	c.values[layer] = v
}

// Invalidate drops all cached projections, releasing them at the next Eval.
func (c *CrossAttnCache) Invalidate() {
	for i := range c.keys {
		if c.keys[i] != nil {
			c.keys[i].Free()
			c.keys[i] = nil
		}
		if c.values[i] != nil {
			c.values[i].Free()
			c.values[i] = nil
		}
	}
}
