// Package serve runs the operator web UI and the live video source.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camruler/camruler/internal/app"
)

// Command creates the serve command.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and video capture",
		Long:  "Serve the measurement UI and API while capturing frames from the configured video source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.Serve(cmd.Context())
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("port", "", "Port of the web UI and API")
	flags.String("source", "", "Video source (push, device, rtsp or snapshot)")
	flags.Int("device", 0, "Camera index for the device source")
	flags.String("rtsp", "", "URL of the RTSP camera")
	flags.String("snapshot", "", "URL polled for JPEG snapshots")
	flags.Bool("telemetry", false, "Enable Prometheus metrics")
	flags.String("listen", "", "Separate listen address of the metrics endpoint")

	for key, flag := range map[string]string{
		"webserver.port":     "port",
		"video.source":       "source",
		"video.device":       "device",
		"video.rtsp.url":     "rtsp",
		"video.snapshot.url": "snapshot",
		"telemetry.enabled":  "telemetry",
		"telemetry.listen":   "listen",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
