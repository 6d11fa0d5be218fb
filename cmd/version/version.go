package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/config"
)

// Command creates the version command.
func Command(ctx *config.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ctx.Build.String())
			return err
		},
	}
}
