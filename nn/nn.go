//go:build mlx

// Package nn provides the layer primitives shared by the transformer and
// the audio decoder. All layers operate on channels-last activations.
package nn

import "github.com/erichchampion/ace-step-1.5/mlx"

// Layer is the interface for layers with a single-input Forward.
type Layer interface {
	Forward(x *mlx.Array) *mlx.Array
}

// Linear applies an affine transformation: y = x @ W.T + b
type Linear struct {
	Weight *mlx.Array `weight:"weight"`
	Bias   *mlx.Array `weight:"bias,optional"`
}

func NewLinear(weight, bias *mlx.Array) *Linear {
	return &Linear{Weight: weight, Bias: bias}
}

func (l *Linear) Forward(x *mlx.Array) *mlx.Array {
	w := mlx.Transpose(l.Weight, 1, 0)
	if l.Bias != nil && l.Bias.Valid() {
		return mlx.AddMM(l.Bias, x, w, 1.0, 1.0)
	}
	return mlx.Matmul(x, w)
}

// OutputDim returns the layer's output width.
func (l *Linear) OutputDim() int32 {
	return l.Weight.Dim(0)
}

// RMSNorm applies RMS normalization with a learned weight.
type RMSNorm struct {
	Weight *mlx.Array `weight:"weight"`
	Eps    float32
}

func NewRMSNorm(weight *mlx.Array, eps float32) *RMSNorm {
	return &RMSNorm{Weight: weight, Eps: eps}
}

func (rn *RMSNorm) Forward(x *mlx.Array) *mlx.Array {
	eps := rn.Eps
	if eps == 0 {
		eps = 1e-6
	}
	return mlx.RMSNorm(x, rn.Weight, eps)
}

// LayerNorm applies layer normalization. Weight and Bias may be nil for
// elementwise_affine=false.
type LayerNorm struct {
	Weight *mlx.Array `weight:"weight,optional"`
	Bias   *mlx.Array `weight:"bias,optional"`
	Eps    float32
}

func (ln *LayerNorm) Forward(x *mlx.Array) *mlx.Array {
	eps := ln.Eps
	if eps == 0 {
		eps = 1e-5
	}
	return mlx.LayerNorm(x, ln.Weight, ln.Bias, eps)
}

// Conv1d applies a 1-D convolution over [B, L, Cin].
// Weight layout is [Cout, K, Cin].
type Conv1d struct {
	Weight   *mlx.Array `weight:"weight"`
	Bias     *mlx.Array `weight:"bias,optional"`
	Stride   int32
	Padding  int32
	Dilation int32
}

func (c *Conv1d) Forward(x *mlx.Array) *mlx.Array {
	stride := c.Stride
	if stride == 0 {
		stride = 1
	}
	dilation := c.Dilation
	if dilation == 0 {
		dilation = 1
	}
	return mlx.Conv1d(x, c.Weight, c.Bias, stride, c.Padding, dilation)
}

// ConvTranspose1d applies a transposed 1-D convolution over [B, L, Cin].
// Weight layout is [Cout, K, Cin].
type ConvTranspose1d struct {
	Weight        *mlx.Array `weight:"weight"`
	Bias          *mlx.Array `weight:"bias,optional"`
	Stride        int32
	Padding       int32
	OutputPadding int32
}

func (c *ConvTranspose1d) Forward(x *mlx.Array) *mlx.Array {
	stride := c.Stride
	if stride == 0 {
		stride = 1
	}
	return mlx.ConvTranspose1d(x, c.Weight, c.Bias, stride, c.Padding, c.OutputPadding)
}

// RepeatKV repeats K/V head groups for grouped-query attention.
// x: [B, H_kv, L, d], returns [B, H_kv*repeat, L, d].
func RepeatKV(x *mlx.Array, repeat int32) *mlx.Array {
	if repeat == 1 {
		return x
	}
	shape := x.Shape()
	x = mlx.ExpandDims(x, 2)
	x = mlx.Tile(x, []int32{1, 1, repeat, 1, 1})
	return mlx.Reshape(x, shape[0], shape[1]*repeat, shape[2], shape[3])
}
