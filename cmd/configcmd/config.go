// Package configcmd implements the config command, which prints the
// effective settings or saves them as a config file.
package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/config"
)

// Command creates the config command.
func Command(ctx *config.Context) *cobra.Command {
	var savePath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, config file, environment and flags have been applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if savePath != "" {
				if err := conf.SaveYAMLConfig(savePath, ctx.Settings); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", savePath)
				return err
			}

			data, err := conf.DumpYAML(ctx.Settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&savePath, "save", "", "Write the configuration to this path instead of printing it")

	return cmd
}
