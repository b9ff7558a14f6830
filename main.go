package main

import (
	"context"

	"github.com/erichchampion/ace-step-1.5/cmd"
	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
