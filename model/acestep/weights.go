package acestep

import "strings"

// DecoderPrefix marks the diffusion decoder sub-tree inside a full-model
// checkpoint.
const DecoderPrefix = "decoder."

// SilenceLatentKey is the tensor name inside the auxiliary silence latent
// file.
const SilenceLatentKey = "latent"

// sequentialWrapped lists modules the source framework wrapped in a
// Sequential, which leaves a numeric index in the parameter path.
var sequentialWrapped = map[string]bool{
	"proj_in":  true,
	"proj_out": true,
	"to_out":   true,
}

// FlattenSequentialKey drops the index segment left behind by Sequential
// wrappers: proj_in.1.weight becomes proj_in.weight.
func FlattenSequentialKey(key string) string {
	segs := strings.Split(key, ".")
	out := make([]string, 0, len(segs))
	for i := 0; i < len(segs); i++ {
		out = append(out, segs[i])
		if sequentialWrapped[segs[i]] && i+1 < len(segs) && isIndex(segs[i+1]) {
			i++
		}
	}
	return strings.Join(out, ".")
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// segmentRenames maps source module names onto the names the runtime
// parameter tree uses.
var segmentRenames = map[string]string{
	"attn1":      "self_attn",
	"attn2":      "cross_attn",
	"to_q":       "q_proj",
	"to_k":       "k_proj",
	"to_v":       "v_proj",
	"to_out":     "o_proj",
	"norm_q":     "q_norm",
	"norm_k":     "k_norm",
	"ff":         "mlp",
	"ffn":        "mlp",
	"t_embedder": "timestep_embedder",
}

// RenameKeySegments rewrites each dotted segment through the rename table.
// Unknown segments pass through unchanged.
func RenameKeySegments(key string) string {
	segs := strings.Split(key, ".")
	for i, s := range segs {
		if r, ok := segmentRenames[s]; ok {
			segs[i] = r
		}
	}
	return strings.Join(segs, ".")
}

// NormalizeKey maps one checkpoint key to the runtime parameter name. The
// two name transforms compose in a fixed order: wrapper flattening first,
// then segment renaming. Physical layout conversion is a separate step
// applied to the tensor itself.
func NormalizeKey(key string) string {
	return RenameKeySegments(FlattenSequentialKey(key))
}

// IsNullConditionKey reports whether a checkpoint key stores the learned
// null condition embedding used by classifier-free guidance.
func IsNullConditionKey(key string) bool {
	return strings.Contains(key, "null_condition_emb")
}

// SelectSubtree maps source keys to selected names. When any key carries
// prefix, only those keys are kept with the prefix stripped; otherwise every
// key maps to itself.
func SelectSubtree(keys []string, prefix string) map[string]string {
	hasPrefix := false
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			hasPrefix = true
			break
		}
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if !hasPrefix {
			out[k] = k
			continue
		}
		if strings.HasPrefix(k, prefix) {
			out[k] = strings.TrimPrefix(k, prefix)
		}
	}
	return out
}
