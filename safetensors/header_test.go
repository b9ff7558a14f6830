package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeSafetensors builds a minimal file: one float32 tensor plus metadata.
func writeSafetensors(t *testing.T, values []float32, shape []int32) string {
	t.Helper()

	var data bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&data, binary.LittleEndian, math.Float32bits(v)); err != nil {
			t.Fatal(err)
		}
	}

	header := map[string]any{
		"__metadata__": map[string]string{"format": "pt"},
		"latent": map[string]any{
			"dtype":        "F32",
			"shape":        shape,
			"data_offsets": []int64{0, int64(data.Len())},
		},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		t.Fatal(err)
	}
	buf.Write(headerJSON)
	buf.Write(data.Bytes())

	path := filepath.Join(t.TempDir(), "test.safetensors")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseHeader(t *testing.T) {
	path := writeSafetensors(t, []float32{1, 2, 3, 4, 5, 6}, []int32{2, 3})

	header, err := ParseHeader(path)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if _, ok := header["__metadata__"]; ok {
		t.Error("__metadata__ leaked into the tensor index")
	}

	info, ok := header["latent"]
	if !ok {
		t.Fatal("latent tensor missing from header")
	}
	if diff := cmp.Diff([]int32{2, 3}, info.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	if info.Dtype != "F32" {
		t.Errorf("dtype = %q, want F32", info.Dtype)
	}
	if info.NumElements() != 6 {
		t.Errorf("NumElements = %d, want 6", info.NumElements())
	}
}

func TestReadFloat32(t *testing.T) {
	want := []float32{1.5, -2.25, 0, 4}
	path := writeSafetensors(t, want, []int32{4})

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !f.HasTensor("latent") {
		t.Fatal("HasTensor(latent) = false")
	}
	if f.HasTensor("missing") {
		t.Error("HasTensor(missing) = true")
	}

	data, shape, err := f.ReadFloat32("latent")
	if err != nil {
		t.Fatalf("ReadFloat32: %v", err)
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{4}, shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := f.ReadFloat32("missing"); err == nil {
		t.Error("ReadFloat32(missing) should fail")
	}
}
