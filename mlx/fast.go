//go:build mlx

package mlx

/*
#cgo CFLAGS: -O3 -I${SRCDIR}/../build/_deps/mlx-c-src -I${SRCDIR}
#cgo darwin LDFLAGS: -lc++ -framework Metal -framework Foundation -framework Accelerate
#cgo linux LDFLAGS: -lstdc++ -ldl
#cgo windows LDFLAGS: -lstdc++

#include "mlx.h"
#include <stdlib.h>

static mlx_stream _default_stream = {0};

static inline mlx_stream default_stream() {
    if (_default_stream.ctx == NULL) {
        _default_stream = mlx_default_gpu_stream_new();
    }
    return _default_stream;
}
*/
import "C"
import "unsafe"

// Softmax computes softmax along an axis.
func Softmax(a *Array, axis int) *Array {
	res := C.mlx_array_new()
	C.mlx_softmax_axis(&res, a.c, C.int(axis), false, C.default_stream())
	return newArray(res)
}

// Sigmoid computes element-wise sigmoid.
func Sigmoid(a *Array) *Array {
	res := C.mlx_array_new()
	C.mlx_sigmoid(&res, a.c, C.default_stream())
	return newArray(res)
}

// SiLU computes x * sigmoid(x).
func SiLU(a *Array) *Array {
	sig := C.mlx_array_new()
	C.mlx_sigmoid(&sig, a.c, C.default_stream())
	res := C.mlx_array_new()
	C.mlx_multiply(&res, a.c, sig, C.default_stream())
	C.mlx_array_free(sig)
	return newArray(res)
}

// Tanh computes element-wise tanh.
func Tanh(a *Array) *Array {
	res := C.mlx_array_new()
	C.mlx_tanh(&res, a.c, C.default_stream())
	return newArray(res)
}

// Take gathers elements along an axis using indices.
func Take(a *Array, indices *Array, axis int) *Array {
	res := C.mlx_array_new()
	C.mlx_take_axis(&res, a.c, indices.c, C.int(axis), C.default_stream())
	return newArray(res)
}

// RMSNorm applies RMS normalization with a weight via the fused kernel.
func RMSNorm(x, weight *Array, eps float32) *Array {
	res := C.mlx_array_new()
	C.mlx_fast_rms_norm(&res, x.c, weight.c, C.float(eps), C.default_stream())
	return newArray(res)
}

// RMSNormNoWeight applies RMS normalization without a learned weight.
// The fused kernel accumulates in float32, so a ones weight is supplied.
func RMSNormNoWeight(x *Array, eps float32) *Array {
	shape := x.Shape()
	ones := AsType(Full(1.0, shape[len(shape)-1]), x.Dtype())
	return RMSNorm(x, ones, eps)
}

// LayerNorm applies layer normalization. weight and bias may be nil.
func LayerNorm(x, weight, bias *Array, eps float32) *Array {
	res := C.mlx_array_new()
	var wc, bc C.mlx_array
	if weight != nil {
		wc = weight.c
	}
	if bias != nil {
		bc = bias.c
	}
	C.mlx_fast_layer_norm(&res, x.c, wc, bc, C.float(eps), C.default_stream())
	return newArray(res)
}

// ScaledDotProductAttention computes attention over [B, H, L, d] inputs
// with an optional additive mask (nil for none).
func ScaledDotProductAttention(q, k, v *Array, scale float32, mask *Array) *Array {
	res := C.mlx_array_new()
	maskMode := ""
	if mask != nil {
		maskMode = "array"
	}
	cMaskMode := C.CString(maskMode)
	defer C.free(unsafe.Pointer(cMaskMode))
	var maskH C.mlx_array
	if mask != nil {
		maskH = mask.c
	}
	C.mlx_fast_scaled_dot_product_attention(&res, q.c, k.c, v.c, C.float(scale), cMaskMode, maskH, C.mlx_array{}, C.default_stream())
	return newArray(res)
}
