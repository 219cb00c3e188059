// Package cmd wires the camruler command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camruler/camruler/cmd/calibrate"
	"github.com/camruler/camruler/cmd/measure"
	"github.com/camruler/camruler/cmd/records"
	"github.com/camruler/camruler/cmd/serve"
	"github.com/camruler/camruler/cmd/version"
	"github.com/camruler/camruler/internal/app"
	"github.com/camruler/camruler/internal/buildinfo"
	"github.com/camruler/camruler/internal/conf"
)

// RootCommand creates the camruler command and its subcommands. Settings are
// loaded before any subcommand except version runs.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	ctx := &app.Context{Build: build}
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "camruler",
		Short:        "Measure objects on a calibrated camera feed",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	if err := setupFlags(rootCmd); err != nil {
		// flag names are static, binding only fails on programming errors
		panic(err)
	}

	versionCmd := version.Command(build)
	rootCmd.AddCommand(
		serve.Command(ctx),
		calibrate.Command(ctx),
		measure.Command(ctx),
		records.Command(ctx),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		settings, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		return ctx.Init(settings)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Close()
	}

	return rootCmd
}

// setupFlags defines the flags shared by all subcommands and binds them to
// their configuration keys so they override the config file.
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("csv", "", "Path of the measurement table")
	flags.String("unit", "", "Unit label for lengths")

	for key, flag := range map[string]string{
		"debug":            "debug",
		"output.csv.path":  "csv",
		"measurement.unit": "unit",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
