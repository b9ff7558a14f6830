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
import (
	"reflect"
	"runtime"
	"time"
)

func init() {
	// Metal command queues are bound to threads; keep the main goroutine pinned.
	runtime.LockOSThread()
	RandomState[0] = RandomKey(uint64(time.Now().UnixMilli()))
	Keep(RandomState[0])
}

func newArray(array C.mlx_array) *Array {
	a := arrayPool.Get().(*Array)
	a.c = array
	a.freed = false
	a.kept = false
	arrays = append(arrays, a)
	return a
}

// Keep marks arrays to survive Eval() cleanup.
func Keep(arrs ...*Array) {
	for _, a := range arrs {
		if a != nil {
			a.kept = true
		}
	}
}

// Collect walks a struct recursively and returns every live *Array field.
func Collect(v any) []*Array {
	var arrs []*Array
	seen := make(map[uintptr]bool)
	collect(reflect.ValueOf(v), &arrs, seen)
	return arrs
}

func collect(v reflect.Value, arrs *[]*Array, seen map[uintptr]bool) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return
		}
		seen[ptr] = true
		if arr, ok := v.Interface().(*Array); ok {
			if arr != nil && arr.c.ctx != nil {
				*arrs = append(*arrs, arr)
			}
			return
		}
		collect(v.Elem(), arrs, seen)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			field := v.Field(i)
			if field.CanInterface() {
				collect(field, arrs, seen)
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			collect(v.Index(i), arrs, seen)
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			collect(v.MapIndex(key), arrs, seen)
		}
	case reflect.Interface:
		if !v.IsNil() {
			collect(v.Elem(), arrs, seen)
		}
	}
}

// cleanup frees non-kept arrays and compacts the live list.
func cleanup() int {
	freed := 0
	n := 0
	for _, a := range arrays {
		if a.kept {
			arrays[n] = a
			n++
		} else if a.c.ctx != nil && !a.freed {
			C.mlx_array_free(a.c)
			a.c.ctx = nil
			arrayPool.Put(a)
			freed++
		}
	}
	arrays = arrays[:n]
	return freed
}

// Eval synchronously evaluates outputs, keeping them, and frees everything
// else produced since the last Eval.
func Eval(outputs ...*Array) []*Array {
	for _, o := range outputs {
		if o != nil {
			o.kept = true
		}
	}
	cleanup()
	if len(outputs) > 0 {
		evalHandles = evalHandles[:0]
		for _, o := range outputs {
			if o != nil {
				evalHandles = append(evalHandles, o.c)
			}
		}
		if len(evalHandles) > 0 {
			vec := C.mlx_vector_array_new_data(&evalHandles[0], C.size_t(len(evalHandles)))
			C.mlx_eval(vec)
			C.mlx_vector_array_free(vec)
		}
	}
	return outputs
}

// Sync waits for outstanding work on the default stream.
func Sync() { C.mlx_synchronize(C.default_stream()) }

// Free marks this array for reclamation at the next Eval().
func (a *Array) Free() {
	if a != nil {
		a.kept = false
	}
}

// Eval evaluates this single array and runs cleanup.
func (a *Array) Eval() *Array {
	Eval(a)
	return a
}

// Valid reports whether the array still holds a live handle.
func (a *Array) Valid() bool { return a != nil && a.c.ctx != nil }
