package acestep

// VAEConfig describes the Oobleck decoder geometry.
type VAEConfig struct {
	LatentDim     int32   `json:"latent_dim" mapstructure:"latent_dim"`
	Channels      int32   `json:"channels" mapstructure:"channels"`
	ChannelMults  []int32 `json:"channel_mults" mapstructure:"channel_mults"`
	UpsampleRates []int32 `json:"upsampling_ratios" mapstructure:"upsampling_ratios"`
	AudioChannels int32   `json:"audio_channels" mapstructure:"audio_channels"`
}

// DefaultVAEConfig returns the stereo Oobleck decoder used by ACE-Step 1.5.
func DefaultVAEConfig() *VAEConfig {
	return &VAEConfig{
		LatentDim:     LatentChannels,
		Channels:      128,
		ChannelMults:  []int32{1, 2, 4, 8, 16},
		UpsampleRates: []int32{2, 4, 4, 6, 10},
		AudioChannels: AudioChannels,
	}
}

// WorkingWidth returns the channel width after the input convolution.
func (c *VAEConfig) WorkingWidth() int32 {
	return c.Channels * c.ChannelMults[len(c.ChannelMults)-1]
}
