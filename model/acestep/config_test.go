package acestep

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int32(2048), cfg.HiddenSize)
	assert.Equal(t, int32(24), cfg.NumLayers)
	assert.Equal(t, int32(2048), cfg.InnerDim())
	assert.Equal(t, int32(LatentChannels), cfg.InChannels)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	// String-typed numbers exercise the weakly typed decode path.
	config := `{
		"hidden_size": 1024,
		"num_hidden_layers": "12",
		"rope_theta": 10000,
		"unknown_key": true
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(config), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, int32(1024), cfg.HiddenSize)
	assert.Equal(t, int32(12), cfg.NumLayers)
	assert.Equal(t, float64(10000), cfg.RopeTheta)
	// Unset fields keep their defaults.
	assert.Equal(t, int32(16), cfg.NumHeads)
	assert.Equal(t, int32(2), cfg.PatchSize)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestResolveModelDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "acestep-v15-base"), 0o755))

	// Explicit name missing falls through to the default order.
	dir, err := ResolveModelDir(root, "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "acestep-v15-base"), dir)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "custom"), 0o755))
	dir, err = ResolveModelDir(root, "custom")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "custom"), dir)

	_, err = ResolveModelDir(t.TempDir(), "")
	assert.Error(t, err)
}
