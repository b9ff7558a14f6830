//go:build mlx

package acestep

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/erichchampion/ace-step-1.5/mlx"
)

// Candidate weight file names inside a model directory, tried in order.
var (
	decoderWeightFiles = []string{"decoder.safetensors", "model.safetensors", "decoder.pt", "model.pt"}
	vaeWeightFiles     = []string{"vae_decoder.safetensors", "vae.safetensors", "vae_decoder.pt"}
)

// SilenceLatentFile is the auxiliary context tensor shipped next to the
// model weights.
const SilenceLatentFile = "silence_latent.safetensors"

// Model bundles everything one generation run needs.
type Model struct {
	Config  *Config
	Decoder *Decoder
	VAE     *OobleckDecoder

	// NullCond is the learned CFG null embedding [1, 1, H_enc], or nil.
	NullCond *mlx.Array
	// Silence is the model's silence latent [1, T_max, 64], or nil. The
	// precomputed conditioning provider uses it only as the initial latent
	// for editing tasks; it is not used as context for text-to-music runs.
	Silence *mlx.Array
}

// LoadModel reads a model directory: config.json, the diffusion decoder and
// VAE decoder checkpoints, and the optional auxiliary tensors. The two
// sub-models load concurrently.
func LoadModel(dir string) (*Model, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	m := &Model{Config: cfg}
	var g errgroup.Group

	g.Go(func() error {
		path, err := findWeightFile(dir, decoderWeightFiles)
		if err != nil {
			return err
		}
		src, err := OpenCheckpoint(path)
		if err != nil {
			return err
		}
		weights := NormalizeWeights(src)
		m.Decoder = NewDecoder(cfg)
		if err := m.Decoder.LoadWeights(weights); err != nil {
			return fmt.Errorf("load decoder %s: %w", path, err)
		}
		if m.NullCond, err = weights.NullConditionEmbedding(); err != nil {
			return fmt.Errorf("load null condition embedding: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		path, err := findWeightFile(dir, vaeWeightFiles)
		if err != nil {
			return err
		}
		src, err := OpenCheckpoint(path)
		if err != nil {
			return err
		}
		m.VAE = NewOobleckDecoder(DefaultVAEConfig())
		if err := m.VAE.LoadWeights(NormalizeWeights(src)); err != nil {
			return fmt.Errorf("load vae %s: %w", path, err)
		}
		return nil
	})

	g.Go(func() error {
		path := filepath.Join(dir, SilenceLatentFile)
		if !fileExists(path) {
			return nil
		}
		var err error
		m.Silence, err = LoadSilenceLatent(path)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

func findWeightFile(dir string, candidates []string) (string, error) {
	for _, name := range candidates {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("no weight file in %s (tried %v)", dir, candidates)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
