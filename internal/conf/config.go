// config.go: settings struct for camruler and the functions that load and save it.
package conf

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MeasurementSettings controls how pixel distances become real-world lengths.
type MeasurementSettings struct {
	Unit         string  // unit label for lengths, e.g. "cm"
	DefaultRatio float64 // ratio used until the operator calibrates
}

// CalibrationSettings contains the known-length input bounds and the
// optionally persisted ratio.
type CalibrationSettings struct {
	KnownLength float64 // default reference length offered to the operator
	MinLength   float64 // smallest accepted reference length
	Epsilon     float64 // pixel distances at or below this are degenerate
	Persist     bool    // write successful calibrations back to the config file
	Ratio       float64 // last persisted ratio, 0 when unset
}

// CSVSettings configures the primary measurement table.
type CSVSettings struct {
	Path string // path of the append-only table
}

// SQLiteSettings configures the optional SQLite mirror.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings configures the optional MySQL mirror.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings lists where saved measurements go.
type OutputSettings struct {
	CSV    CSVSettings
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// RTSPSettings configures an ffmpeg-backed network camera.
type RTSPSettings struct {
	URL       string
	Transport string // tcp or udp
}

// SnapshotSettings configures a camera polled over HTTP for JPEG stills.
type SnapshotSettings struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// VideoSettings selects and configures the live frame producer.
type VideoSettings struct {
	Source      string // push, device, rtsp or snapshot
	Device      int    // camera index for the device source
	RTSP        RTSPSettings
	Snapshot    SnapshotSettings
	FfmpegPath  string // ffmpeg binary, looked up in PATH when empty
	JPEGQuality int    // quality used when encoding frames
	FPS         int    // frame rate requested from device and rtsp sources
}

// WebServerSettings configures the operator UI and API.
type WebServerSettings struct {
	Enabled       bool
	Port          string
	SessionSecret string        // signs session cookies
	SessionTTL    time.Duration // idle time before a session is dropped
	IngestRate    float64       // max pushed frames per second per client
}

// MQTTSettings configures publication of saved records.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// NotificationSettings configures shoutrrr notifications on save.
type NotificationSettings struct {
	Enabled bool
	URLs    []string
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// TelemetrySettings configures the metrics endpoint and Sentry.
type TelemetrySettings struct {
	Enabled bool
	Listen  string // address of a standalone metrics listener, empty to serve on the web server
	Sentry  SentrySettings
}

// Settings is the root configuration.
type Settings struct {
	Debug bool

	Logging      logger.LoggingConfig
	Measurement  MeasurementSettings
	Calibration  CalibrationSettings
	Output       OutputSettings
	Video        VideoSettings
	WebServer    WebServerSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Telemetry    TelemetrySettings
}

var (
	settingsInstance *Settings
	configFileUsed   string
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a Settings. An empty
// configFile searches the default config paths and creates a default file when
// none exists.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	configFileUsed = viper.ConfigFileUsed()
	return settings, nil
}

// initViper sets defaults and env bindings, then reads the configuration file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		// invalid env values are reported but do not prevent startup
		fmt.Fprintln(os.Stderr, err)
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it
// back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if viper.GetString("webserver.sessionsecret") == "" {
		viper.Set("webserver.sessionsecret", GenerateRandomSecret())
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FileError(fmt.Errorf("error creating config directory: %w", err), dir)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.FileError(fmt.Errorf("error writing default config file: %w", err), configPath)
	}

	fmt.Println("Created default config file at:", configPath)
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the most recently loaded settings.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ConfigFileUsed returns the path Load read the settings from.
func ConfigFileUsed() string {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return configFileUsed
}

// SaveCalibrationRatio records ratio in settings and writes the config file.
func SaveCalibrationRatio(settings *Settings, ratio float64) error {
	path := ConfigFileUsed()
	if path == "" {
		return errors.Newf("no config file loaded").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	settingsMutex.Lock()
	settings.Calibration.Ratio = ratio
	snapshot := *settings
	settingsMutex.Unlock()

	return SaveYAMLConfig(path, &snapshot)
}

// SaveYAMLConfig writes settings to configPath atomically. Comments in the
// existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.FileError(fmt.Errorf("error replacing config file: %w", err), configPath)
	}
	return nil
}

// GenerateRandomSecret returns 256 bits of URL-safe base64 randomness.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
