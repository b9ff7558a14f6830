// Package cmd implements the acestep command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/erichchampion/ace-step-1.5/logutil"
	"github.com/erichchampion/ace-step-1.5/model/acestep"
	"github.com/erichchampion/ace-step-1.5/pipeline"
	"github.com/erichchampion/ace-step-1.5/safetensors"
)

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "acestep",
		Short:         "Generate music locally with the ACE-Step 1.5 model",
		SilenceUsage:  true,
		SilenceErrors: false,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(os.Stderr, level))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		NewGenerateCmd(),
		NewWeightsCmd(),
		NewScheduleCmd(),
	)
	return root
}

// NewWeightsCmd inspects a checkpoint file: each tensor's source key, the
// runtime name it normalizes to, and its shape.
func NewWeightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weights CHECKPOINT",
		Short: "List checkpoint tensors and their normalized names",
		Args:  cobra.ExactArgs(1),
		RunE:  weightsHandler,
	}
}

func weightsHandler(cmd *cobra.Command, args []string) error {
	path := args[0]
	keys, shapes, err := checkpointIndex(path)
	if err != nil {
		return err
	}

	selected := acestep.SelectSubtree(keys, acestep.DecoderPrefix)

	var data [][]string
	for _, key := range keys {
		name, ok := selected[key]
		switch {
		case acestep.IsNullConditionKey(key):
			name = "(null condition embedding)"
		case !ok:
			name = "(dropped)"
		default:
			name = acestep.NormalizeKey(name)
		}
		data = append(data, []string{key, name, shapes[key]})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"KEY", "NORMALIZED", "SHAPE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

// checkpointIndex enumerates keys and shapes without loading tensor data
// onto the accelerator.
func checkpointIndex(path string) ([]string, map[string]string, error) {
	shapes := make(map[string]string)
	var keys []string

	if filepath.Ext(path) == ".safetensors" {
		header, err := safetensors.ParseHeader(path)
		if err != nil {
			return nil, nil, err
		}
		for key, info := range header {
			keys = append(keys, key)
			shapes[key] = shapeString(info.Shape)
		}
	} else {
		tensors, err := safetensors.LoadPickle(path)
		if err != nil {
			return nil, nil, err
		}
		for key, t := range tensors {
			keys = append(keys, key)
			shapes[key] = shapeString(t.Shape)
		}
	}
	sort.Strings(keys)
	return keys, shapes, nil
}

func shapeString(shape []int32) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// NewScheduleCmd prints the timestep schedule a parameter set produces.
func NewScheduleCmd() *cobra.Command {
	var shift float32
	var steps int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the denoising schedule for a shift and step count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := pipeline.Schedule(shift, steps, nil)

			var data [][]string
			for i, t := range ts {
				var next float32
				if i+1 < len(ts) {
					next = ts[i+1]
				}
				data = append(data, []string{
					fmt.Sprint(i + 1),
					fmt.Sprintf("%.4f", t),
					fmt.Sprintf("%.4f", next),
					fmt.Sprintf("%.4f", t-next),
				})
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"STEP", "T", "NEXT", "DT"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
	cmd.Flags().Float32Var(&shift, "shift", 3, "Schedule shift factor")
	cmd.Flags().IntVar(&steps, "steps", 0, "Inference steps (0 uses the preset schedule)")
	return cmd
}
