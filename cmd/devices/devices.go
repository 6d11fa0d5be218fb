// Package devices implements the devices command.
package devices

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/config"
)

// Command creates the devices command.
func Command(ctx *config.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the audio devices of the selected backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := ctx.Backend()
			if err != nil {
				return err
			}
			devices, err := List(backend)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			return PrintTable(cmd.OutOrStdout(), devices)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print devices as JSON")

	return cmd
}

// List initializes backend for the duration of the enumeration.
func List(backend audiocore.Backend) (devices []audiocore.DeviceInfo, err error) {
	if err := audiocore.Initialize(backend); err != nil {
		return nil, err
	}
	defer func() {
		if serr := audiocore.Shutdown(backend); err == nil {
			err = serr
		}
	}()
	return backend.Devices()
}

// PrintTable writes devices as an aligned table.
func PrintTable(w io.Writer, devices []audiocore.DeviceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tIN\tOUT\tRATE\tDEFAULT\tID")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.0f\t%s\t%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def, d.ID)
	}
	return tw.Flush()
}
