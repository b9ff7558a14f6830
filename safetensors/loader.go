//go:build mlx

package safetensors

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

// WeightSource serves tensors by their runtime name. Checkpoint (shard
// files), HostWeights (pickle checkpoints), and renamed views all implement
// it.
type WeightSource interface {
	GetTensor(name string) (*mlx.Array, error)
	ListTensors() []string
	HasTensor(name string) bool
}

// LoadModule fills every `weight`-tagged field of dst from weights.
//
// Only tagged fields participate. The tag value names the tensor path
// segment under prefix; dots separate segments. Field kinds:
//
//	*mlx.Array                 receives the tensor directly
//	pointer to struct          allocated if nil, descended into
//	slice of struct pointers   descended per element with .0, .1, ... suffixes
//	anything else              configuration, ignored
//
// A ",optional" tag suffix lets the tensor be absent (linear and conv biases
// vary between checkpoint exports). Slices must already be sized;
// the module constructors do that. All missing required tensors are
// reported together so one pass shows the whole mismatch.
func LoadModule(dst any, weights WeightSource, prefix string) error {
	root := reflect.ValueOf(dst)
	if root.Kind() != reflect.Ptr || root.IsNil() {
		return fmt.Errorf("load module: need a non-nil struct pointer, got %T", dst)
	}

	var missing []string
	bindFields(root.Elem(), prefix, func(path string, optional bool, set func(*mlx.Array)) {
		arr, err := weights.GetTensor(path)
		if err != nil || arr == nil {
			if !optional {
				missing = append(missing, path)
			}
			return
		}
		set(arr)
	})
	if len(missing) > 0 {
		return fmt.Errorf("checkpoint is missing %d tensors:\n  %s",
			len(missing), strings.Join(missing, "\n  "))
	}
	return nil
}

var arrayPtr = reflect.TypeOf((*mlx.Array)(nil))

// bindFields walks the tagged fields of a struct value and calls bind once
// per leaf tensor.
func bindFields(v reflect.Value, prefix string, bind func(path string, optional bool, set func(*mlx.Array))) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, tagged := t.Field(i).Tag.Lookup("weight")
		if !tagged || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		path := dotted(prefix, name)
		field := v.Field(i)

		switch {
		case field.Type() == arrayPtr:
			field := field
			bind(path, strings.Contains(opts, "optional"), func(arr *mlx.Array) {
				field.Set(reflect.ValueOf(arr))
			})

		case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			bindFields(field.Elem(), path, bind)

		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Ptr &&
			field.Type().Elem().Elem().Kind() == reflect.Struct:
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				if elem.IsNil() {
					elem.Set(reflect.New(field.Type().Elem().Elem()))
				}
				bindFields(elem.Elem(), fmt.Sprintf("%s.%d", path, j), bind)
			}
		}
	}
}

func dotted(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "." + name
	}
}
