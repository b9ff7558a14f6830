//go:build !mlx

package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// NewGenerateCmd in builds without accelerator support only reports that
// generation is unavailable.
func NewGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate audio from precomputed conditioning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("this build has no accelerator support; rebuild with -tags mlx")
		},
	}
}
