package acestep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlattenSequentialKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"proj_in.1.weight", "proj_in.weight"},
		{"proj_in.1.bias", "proj_in.bias"},
		{"proj_out.1.weight", "proj_out.weight"},
		{"layers.0.self_attn.to_out.0.weight", "layers.0.self_attn.to_out.weight"},
		// Indices not owned by a wrapped module survive.
		{"layers.3.mlp.gate_proj.weight", "layers.3.mlp.gate_proj.weight"},
		{"proj_in.weight", "proj_in.weight"},
	}
	for _, tc := range cases {
		if got := FlattenSequentialKey(tc.in); got != tc.want {
			t.Errorf("FlattenSequentialKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenameKeySegments(t *testing.T) {
	cases := []struct{ in, want string }{
		{"layers.0.attn1.to_q.weight", "layers.0.self_attn.q_proj.weight"},
		{"layers.0.attn2.to_k.weight", "layers.0.cross_attn.k_proj.weight"},
		{"layers.5.ff.gate_proj.weight", "layers.5.mlp.gate_proj.weight"},
		{"layers.1.attn1.norm_q.weight", "layers.1.self_attn.q_norm.weight"},
		{"time_embed.t_embedder.linear_1.weight", "time_embed.timestep_embedder.linear_1.weight"},
		// Names already in runtime style pass through.
		{"layers.0.self_attn.q_proj.weight", "layers.0.self_attn.q_proj.weight"},
	}
	for _, tc := range cases {
		if got := RenameKeySegments(tc.in); got != tc.want {
			t.Errorf("RenameKeySegments(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	// Flattening runs before renaming.
	got := NormalizeKey("layers.0.attn2.to_out.0.weight")
	want := "layers.0.cross_attn.o_proj.weight"
	if got != want {
		t.Errorf("NormalizeKey = %q, want %q", got, want)
	}
}

func TestSelectSubtree(t *testing.T) {
	full := []string{
		"decoder.proj_in.weight",
		"decoder.layers.0.mlp.up_proj.weight",
		"encoder.embed.weight",
		"null_condition_emb",
	}
	got := SelectSubtree(full, DecoderPrefix)
	want := map[string]string{
		"decoder.proj_in.weight":              "proj_in.weight",
		"decoder.layers.0.mlp.up_proj.weight": "layers.0.mlp.up_proj.weight",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectSubtree mismatch (-want +got):\n%s", diff)
	}

	flat := []string{"proj_in.weight", "layers.0.mlp.up_proj.weight"}
	got = SelectSubtree(flat, DecoderPrefix)
	want = map[string]string{
		"proj_in.weight":              "proj_in.weight",
		"layers.0.mlp.up_proj.weight": "layers.0.mlp.up_proj.weight",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("identity SelectSubtree mismatch (-want +got):\n%s", diff)
	}
}

func TestIsNullConditionKey(t *testing.T) {
	if !IsNullConditionKey("null_condition_emb") {
		t.Error("bare key not recognized")
	}
	if !IsNullConditionKey("decoder.null_condition_embedding") {
		t.Error("prefixed key not recognized")
	}
	if IsNullConditionKey("layers.0.self_attn.q_proj.weight") {
		t.Error("ordinary key misclassified")
	}
}
