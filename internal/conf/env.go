// env.go - environment variable configuration and validation for camruler
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CAMRULER_DEBUG", validateEnvBool},
		{"measurement.unit", "CAMRULER_UNIT", nil},
		{"measurement.defaultratio", "CAMRULER_DEFAULT_RATIO", validateEnvPositiveFloat},
		{"calibration.knownlength", "CAMRULER_KNOWN_LENGTH", validateEnvPositiveFloat},
		{"output.csv.path", "CAMRULER_CSV_PATH", validateEnvPath},
		{"video.source", "CAMRULER_VIDEO_SOURCE", validateEnvVideoSource},
		{"video.rtsp.url", "CAMRULER_RTSP_URL", nil},
		{"video.snapshot.url", "CAMRULER_SNAPSHOT_URL", nil},
		{"webserver.port", "CAMRULER_PORT", validateEnvPort},
		{"webserver.sessionsecret", "CAMRULER_SESSION_SECRET", nil},
		{"mqtt.broker", "CAMRULER_MQTT_BROKER", nil},
		{"mqtt.username", "CAMRULER_MQTT_USERNAME", nil},
		{"mqtt.password", "CAMRULER_MQTT_PASSWORD", nil},
		{"output.mysql.password", "CAMRULER_MYSQL_PASSWORD", nil},
		{"telemetry.sentry.dsn", "CAMRULER_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every environment variable and reports invalid values.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value: %s", value)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number: %s", value)
	}
	if !(f > 0) {
		return fmt.Errorf("must be positive, got %v", f)
	}
	return nil
}

func validateEnvPort(value string) error {
	return validatePort(strings.TrimSpace(value))
}

func validateEnvPath(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("path must not be empty")
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	return nil
}

func validateEnvVideoSource(value string) error {
	switch strings.TrimSpace(value) {
	case VideoSourcePush, VideoSourceDevice, VideoSourceRTSP, VideoSourceSnapshot:
		return nil
	default:
		return fmt.Errorf("unknown video source %q", value)
	}
}
