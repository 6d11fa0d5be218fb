// Package cmd assembles the audiobridge command line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiobridge/cmd/configcmd"
	"github.com/tphakala/audiobridge/cmd/devices"
	"github.com/tphakala/audiobridge/cmd/duplex"
	"github.com/tphakala/audiobridge/cmd/play"
	"github.com/tphakala/audiobridge/cmd/record"
	"github.com/tphakala/audiobridge/cmd/version"
	"github.com/tphakala/audiobridge/internal/audiocore"
	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/config"
	"github.com/tphakala/audiobridge/internal/errors"
)

// globalFlags are the persistent flags shared by every subcommand. They
// override the loaded settings only when given on the command line.
type globalFlags struct {
	configPath string
	debug      bool
	backend    string
	device     string
	metrics    bool
	listen     string
}

// RootCommand creates and returns the root command
func RootCommand(ctx *config.Context) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "audiobridge",
		Short:         "Audio device I/O through lock-free ring buffers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, flags)

	versionCmd := version.Command(ctx)

	rootCmd.AddCommand(
		devices.Command(ctx),
		play.Command(ctx),
		record.Command(ctx),
		duplex.Command(ctx),
		configcmd.Command(ctx),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no settings
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(cmd, ctx, flags)
	}

	return rootCmd
}

// initialize loads the settings, applies command line overrides and sets up
// logging and error reporting.
func initialize(cmd *cobra.Command, ctx *config.Context, flags *globalFlags) error {
	var (
		settings *conf.Settings
		err      error
	)
	if flags.configPath != "" {
		settings, err = conf.LoadFile(flags.configPath)
	} else {
		settings, err = conf.Load()
	}
	if err != nil {
		return err
	}

	pf := cmd.Flags()
	if pf.Changed("debug") {
		settings.Debug = flags.debug
	}
	if pf.Changed("backend") {
		settings.Audio.Backend = flags.backend
	}
	if pf.Changed("device") {
		settings.Audio.Device = flags.device
	}
	if pf.Changed("metrics") {
		settings.Metrics.Enabled = flags.metrics
	}
	if pf.Changed("listen") {
		settings.Metrics.Listen = flags.listen
	}

	if err := conf.ValidateSettings(settings); err != nil {
		return errors.New(err).
			Component("cli").
			Category(errors.CategoryValidation).
			Context("operation", "apply_flags").
			Build()
	}

	ctx.Settings = settings
	return ctx.Setup()
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, flags *globalFlags) {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to config.yaml (default: search the standard locations)")
	pf.BoolVarP(&flags.debug, "debug", "d", false, "Enable debug output")
	pf.StringVarP(&flags.backend, "backend", "b", conf.DefaultBackend, "Audio backend: "+strings.Join(config.AvailableBackends(), ", "))
	pf.StringVar(&flags.device, "device", audiocore.DeviceDefault, "Audio device name, ID or index")
	pf.BoolVar(&flags.metrics, "metrics", false, "Serve /metrics, /health and /api/v1/streams while running")
	pf.StringVar(&flags.listen, "listen", conf.DefaultMetricsListen, "Listen address of the observability endpoint")
}
