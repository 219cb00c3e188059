// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default measurement constants.
const (
	DefaultRatio       = 15.0 / 273.03
	DefaultKnownLength = 15.0
	DefaultMinLength   = 0.1
	DefaultCSVPath     = "measurements.csv"
	DefaultUnit        = "cm"
)

// Video source names.
const (
	VideoSourcePush     = "push"
	VideoSourceDevice   = "device"
	VideoSourceRTSP     = "rtsp"
	VideoSourceSnapshot = "snapshot"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/camruler.log")
	viper.SetDefault("logging.file.level", "info")

	viper.SetDefault("measurement.unit", DefaultUnit)
	viper.SetDefault("measurement.defaultratio", DefaultRatio)

	viper.SetDefault("calibration.knownlength", DefaultKnownLength)
	viper.SetDefault("calibration.minlength", DefaultMinLength)
	viper.SetDefault("calibration.epsilon", 1e-9)
	viper.SetDefault("calibration.persist", false)
	viper.SetDefault("calibration.ratio", 0.0)

	viper.SetDefault("output.csv.path", DefaultCSVPath)
	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "camruler.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "camruler")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("video.source", VideoSourcePush)
	viper.SetDefault("video.device", 0)
	viper.SetDefault("video.rtsp.url", "")
	viper.SetDefault("video.rtsp.transport", "tcp")
	viper.SetDefault("video.snapshot.url", "")
	viper.SetDefault("video.snapshot.interval", 500*time.Millisecond)
	viper.SetDefault("video.snapshot.timeout", 5*time.Second)
	viper.SetDefault("video.ffmpegpath", "")
	viper.SetDefault("video.jpegquality", 90)
	viper.SetDefault("video.fps", 10)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.sessionsecret", "")
	viper.SetDefault("webserver.sessionttl", 12*time.Hour)
	viper.SetDefault("webserver.ingestrate", 30.0)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "camruler/measurements")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "")
	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")
}

// Default returns settings holding the built-in defaults without reading any
// file or environment. Commands that run without a config file and tests use
// it.
func Default() *Settings {
	return &Settings{
		Measurement: MeasurementSettings{Unit: DefaultUnit, DefaultRatio: DefaultRatio},
		Calibration: CalibrationSettings{
			KnownLength: DefaultKnownLength,
			MinLength:   DefaultMinLength,
			Epsilon:     1e-9,
		},
		Output: OutputSettings{
			CSV:    CSVSettings{Path: DefaultCSVPath},
			SQLite: SQLiteSettings{Path: "camruler.db"},
			MySQL:  MySQLSettings{Database: "camruler", Host: "localhost", Port: "3306"},
		},
		Video: VideoSettings{
			Source:      VideoSourcePush,
			RTSP:        RTSPSettings{Transport: "tcp"},
			Snapshot:    SnapshotSettings{Interval: 500 * time.Millisecond, Timeout: 5 * time.Second},
			JPEGQuality: 90,
			FPS:         10,
		},
		WebServer: WebServerSettings{
			Enabled:    true,
			Port:       "8080",
			SessionTTL: 12 * time.Hour,
			IngestRate: 30,
		},
		MQTT: MQTTSettings{Broker: "tcp://localhost:1883", Topic: "camruler/measurements"},
	}
}
