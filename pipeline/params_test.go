package pipeline

import (
	"errors"
	"testing"
)

func TestLatentFrames(t *testing.T) {
	cases := []struct {
		duration float32
		want     int32
	}{
		{0, 100},
		{-1, 100},
		{30, 750},
		{1, 128},
		{5.12, 128},
		{5.2, 130},
		{60, 1500},
	}
	for _, tc := range cases {
		if got := LatentFrames(tc.duration); got != tc.want {
			t.Errorf("LatentFrames(%g) = %d, want %d", tc.duration, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	good := DefaultGenerationParams()
	if err := good.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*GenerationParams)
	}{
		{"guidance below one", func(p *GenerationParams) { p.GuidanceScale = 0.5 }},
		{"inverted cfg interval", func(p *GenerationParams) { p.CFGIntervalStart = 0.8; p.CFGIntervalEnd = 0.2 }},
		{"zero rescale", func(p *GenerationParams) { p.LatentRescale = 0 }},
		{"timestep above one", func(p *GenerationParams) { p.Timesteps = []float32{1.5} }},
		{"negative timestep", func(p *GenerationParams) { p.Timesteps = []float32{-0.1} }},
		{"duration over limit", func(p *GenerationParams) { p.Duration = 601 }},
		{"bpm too slow", func(p *GenerationParams) { p.BPM = 20 }},
		{"bpm too fast", func(p *GenerationParams) { p.BPM = 400 }},
		{"inverted repaint window", func(p *GenerationParams) { p.RepaintStart = 5; p.RepaintEnd = 1 }},
		{"lm top-p above one", func(p *GenerationParams) { p.LMTopP = 1.5 }},
	}
	for _, tc := range cases {
		p := DefaultGenerationParams()
		tc.mutate(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tc.name)
		}
	}
}

func TestAudioResultDuration(t *testing.T) {
	r := AudioResult{
		Samples:    make([]float32, 51200*2),
		SampleRate: 51200,
		Channels:   2,
	}
	if got := r.Duration(); got != 1 {
		t.Errorf("Duration() = %g, want 1", got)
	}

	var empty AudioResult
	if got := empty.Duration(); got != 0 {
		t.Errorf("empty Duration() = %g, want 0", got)
	}
}

func TestStatusFromError(t *testing.T) {
	ok := StatusFromError(nil)
	if !ok.Success || ok.Error != "" {
		t.Errorf("StatusFromError(nil) = %+v", ok)
	}

	bad := StatusFromError(errors.New("boom"))
	if bad.Success || bad.Error != "boom" {
		t.Errorf("StatusFromError(err) = %+v", bad)
	}
}
