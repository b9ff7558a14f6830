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

// Conv1d performs 1-D convolution over channels-last input.
// x: [B, L, Cin], weight: [Cout, K, Cin], bias optional.
func Conv1d(x, weight, bias *Array, stride, padding, dilation int32) *Array {
	res := C.mlx_array_new()
	C.mlx_conv1d(&res, x.c, weight.c, C.int(stride), C.int(padding), C.int(dilation), 1, C.default_stream())
	if bias != nil {
		biased := C.mlx_array_new()
		C.mlx_add(&biased, res, bias.c, C.default_stream())
		C.mlx_array_free(res)
		return newArray(biased)
	}
	return newArray(res)
}

// ConvTranspose1d performs transposed 1-D convolution over channels-last input.
// x: [B, L, Cin], weight: [Cout, K, Cin], bias optional.
func ConvTranspose1d(x, weight, bias *Array, stride, padding, outputPadding int32) *Array {
	res := C.mlx_array_new()
	C.mlx_conv_transpose1d(&res, x.c, weight.c, C.int(stride), C.int(padding), 1, C.int(outputPadding), 1, C.default_stream())
	if bias != nil {
		biased := C.mlx_array_new()
		C.mlx_add(&biased, res, bias.c, C.default_stream())
		C.mlx_array_free(res)
		return newArray(biased)
	}
	return newArray(res)
}
