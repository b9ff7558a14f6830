// Package acestep implements the ACE-Step 1.5 music-generation model: a
// diffusion transformer that denoises an acoustic latent under text and
// lyric conditioning, and the Oobleck decoder that turns the final latent
// into a stereo waveform.
package acestep

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

// Model-wide constants. The latent runs at 2048 audio samples per frame.
const (
	LatentChannels  = 64
	ContextChannels = 128
	EncoderDim      = 2048
	SamplesPerFrame = 2048
	AudioChannels   = 2
	SampleRate      = 51200

	// MinLatentFrames matches the conditioning padding used by the exporter.
	MinLatentFrames     = 128
	DefaultLatentFrames = 100
)

// Config holds the transformer configuration read from config.json.
type Config struct {
	HiddenSize        int32   `json:"hidden_size" mapstructure:"hidden_size"`
	NumLayers         int32   `json:"num_hidden_layers" mapstructure:"num_hidden_layers"`
	NumHeads          int32   `json:"num_attention_heads" mapstructure:"num_attention_heads"`
	NumKVHeads        int32   `json:"num_key_value_heads" mapstructure:"num_key_value_heads"`
	HeadDim           int32   `json:"head_dim" mapstructure:"head_dim"`
	IntermediateSize  int32   `json:"intermediate_size" mapstructure:"intermediate_size"`
	PatchSize         int32   `json:"patch_size" mapstructure:"patch_size"`
	SlidingWindow     int32   `json:"sliding_window" mapstructure:"sliding_window"`
	RopeTheta         float64 `json:"rope_theta" mapstructure:"rope_theta"`
	TimestepFreqDim   int32   `json:"timestep_freq_dim" mapstructure:"timestep_freq_dim"`
	RMSNormEps        float32 `json:"rms_norm_eps" mapstructure:"rms_norm_eps"`
	InChannels        int32   `json:"in_channels" mapstructure:"in_channels"`
	ContextChannels   int32   `json:"context_channels" mapstructure:"context_channels"`
	EncoderHiddenSize int32   `json:"encoder_hidden_size" mapstructure:"encoder_hidden_size"`
}

// DefaultConfig returns the acestep-v15-turbo transformer configuration.
func DefaultConfig() *Config {
	return &Config{
		HiddenSize:        2048,
		NumLayers:         24,
		NumHeads:          16,
		NumKVHeads:        8,
		HeadDim:           128,
		IntermediateSize:  6144,
		PatchSize:         2,
		SlidingWindow:     128,
		RopeTheta:         1_000_000,
		TimestepFreqDim:   256,
		RMSNormEps:        1e-6,
		InChannels:        LatentChannels,
		ContextChannels:   ContextChannels,
		EncoderHiddenSize: EncoderDim,
	}
}

// LoadConfig reads config.json from a model directory, filling unset fields
// from the defaults. Unknown keys are ignored.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg := DefaultConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg, nil
}

// InnerDim returns the width of the attention projections.
func (c *Config) InnerDim() int32 {
	return c.NumHeads * c.HeadDim
}

// DefaultConfigOrder lists checkpoint directory names tried in order when
// resolving a model root.
var DefaultConfigOrder = []string{"acestep-v15-turbo", "acestep-v15-base"}

// ResolveModelDir returns root/name when it exists, else the first entry of
// DefaultConfigOrder that exists under root.
func ResolveModelDir(root, name string) (string, error) {
	if name != "" {
		dir := filepath.Join(root, name)
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}
	for _, candidate := range DefaultConfigOrder {
		dir := filepath.Join(root, candidate)
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no model checkpoint found under %s", root)
}
