// Package cli wires the posindex cobra commands together.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute builds and runs the root command tree.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "posindex",
		Short: "Build positional inverted indexes over an annotated text corpus",
	}
	root.AddCommand(newBuildCmd())
	return root.ExecuteContext(ctx)
}
