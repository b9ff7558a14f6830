//go:build mlx

package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erichchampion/ace-step-1.5/audio"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
	"github.com/erichchampion/ace-step-1.5/pipeline"
)

// NewGenerateCmd runs one generation batch and writes WAV files.
func NewGenerateCmd() *cobra.Command {
	var (
		modelDir     string
		conditioning string
		output       string
		batch        int
		fake         bool
		params       = pipeline.DefaultGenerationParams()
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate audio from precomputed conditioning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline(modelDir, conditioning, fake)
			if err != nil {
				return err
			}

			config := pipeline.GenerationConfig{
				BatchSize: batch,
				Progress: func(step, total int, t float32) {
					fmt.Fprintf(cmd.OutOrStdout(), "\rstep %d/%d (t=%.3f)", step, total, t)
					if step == total {
						fmt.Fprintln(cmd.OutOrStdout())
					}
				},
			}
			results, err := p.Run(cmd.Context(), params, config)
			if err != nil {
				return err
			}

			var g errgroup.Group
			for i, r := range results {
				r := r
				path := output
				if len(results) > 1 {
					ext := filepath.Ext(output)
					path = fmt.Sprintf("%s-%d%s", output[:len(output)-len(ext)], i, ext)
				}
				g.Go(func() error {
					if err := audio.WriteFile(path, r.Samples, r.SampleRate, r.Channels); err != nil {
						return fmt.Errorf("write %s: %w", path, err)
					}
					slog.Info("wrote", "path", path, "seconds", r.Duration(), "seed", r.Seed)
					return nil
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&modelDir, "model", "m", "", "Model directory")
	cmd.Flags().StringVarP(&conditioning, "conditioning", "c", "", "Exported conditioning file")
	cmd.Flags().StringVarP(&output, "output", "o", "output.wav", "Output WAV path")
	cmd.Flags().IntVarP(&batch, "batch", "b", 1, "Clips to generate")
	cmd.Flags().BoolVar(&fake, "fake", false, "Use weightless fake components for shape testing")

	cmd.Flags().StringVar(&params.Caption, "caption", "", "Style caption passed to the conditioning provider")
	cmd.Flags().StringVar(&params.Lyrics, "lyrics", "", "Lyrics passed to the conditioning provider")
	cmd.Flags().StringVar(&params.TaskType, "task", params.TaskType, "Generation task")
	cmd.Flags().IntVar(&params.BPM, "bpm", 0, "Tempo hint (0 omits)")
	cmd.Flags().Float32VarP(&params.Duration, "duration", "d", params.Duration, "Clip length in seconds")
	cmd.Flags().IntVar(&params.InferenceSteps, "steps", 0, "Inference steps (0 uses the preset schedule)")
	cmd.Flags().Float32Var(&params.Shift, "shift", params.Shift, "Schedule shift factor")
	cmd.Flags().Float32Var(&params.GuidanceScale, "guidance", params.GuidanceScale, "Guidance scale (1 disables CFG)")
	cmd.Flags().Int64Var(&params.Seed, "seed", params.Seed, "Random seed (negative draws fresh entropy)")

	return cmd
}

func buildPipeline(modelDir, conditioning string, fake bool) (*pipeline.Pipeline, error) {
	if fake {
		return pipeline.New(nil, pipeline.FakeStepper{}, pipeline.FakeVAE{}), nil
	}
	if modelDir == "" {
		return nil, fmt.Errorf("--model is required without --fake")
	}
	if conditioning == "" {
		return nil, fmt.Errorf("--conditioning is required without --fake")
	}

	model, err := acestep.LoadModel(modelDir)
	if err != nil {
		return nil, pipeline.WrapErr(pipeline.KindWeightFormat, err, "load model %s", modelDir)
	}

	provider := &pipeline.PrecomputedProvider{
		Path:    conditioning,
		Null:    model.NullCond,
		Silence: model.Silence,
	}
	return pipeline.New(provider, pipeline.NewDiTStepper(model.Decoder), model.VAE), nil
}
