package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semtab/semtab-cli/internal/output"
)

func structuredOutputRequested() bool {
	return output.IsStructured(GetOutputFormat())
}

// printStructured renders data on the command's context so the query and IO
// wiring from PersistentPreRunE apply.
func printStructured(cmd *cobra.Command, data interface{}) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	printer := output.NewPrinter(stdoutFromContext(ctx), GetOutputFormat())
	return printer.Print(ctx, data)
}
