// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateMeasurementSettings,
		validateCalibrationSettings,
		validateOutputSettings,
		validateVideoSettings,
		validateWebServerSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateTelemetrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMeasurementSettings(s *Settings) []string {
	var errs []string
	if strings.TrimSpace(s.Measurement.Unit) == "" {
		errs = append(errs, "measurement.unit must not be empty")
	}
	if !(s.Measurement.DefaultRatio > 0) {
		errs = append(errs, fmt.Sprintf("measurement.defaultratio must be positive, got %v", s.Measurement.DefaultRatio))
	}
	return errs
}

func validateCalibrationSettings(s *Settings) []string {
	var errs []string
	c := s.Calibration
	if !(c.MinLength > 0) {
		errs = append(errs, fmt.Sprintf("calibration.minlength must be positive, got %v", c.MinLength))
	}
	if c.KnownLength < c.MinLength {
		errs = append(errs, fmt.Sprintf("calibration.knownlength %v is below calibration.minlength %v", c.KnownLength, c.MinLength))
	}
	if c.Epsilon < 0 {
		errs = append(errs, "calibration.epsilon must not be negative")
	}
	if c.Ratio < 0 {
		errs = append(errs, "calibration.ratio must not be negative")
	}
	return errs
}

func validateOutputSettings(s *Settings) []string {
	var errs []string
	if strings.TrimSpace(s.Output.CSV.Path) == "" {
		errs = append(errs, "output.csv.path must not be empty")
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path is required when sqlite output is enabled")
	}
	if m := s.Output.MySQL; m.Enabled {
		if m.Host == "" || m.Database == "" || m.Username == "" {
			errs = append(errs, "output.mysql requires host, database and username when enabled")
		}
		if err := validatePort(m.Port); err != nil {
			errs = append(errs, "output.mysql.port: "+err.Error())
		}
	}
	return errs
}

func validateVideoSettings(s *Settings) []string {
	var errs []string
	v := s.Video
	switch v.Source {
	case VideoSourcePush:
	case VideoSourceDevice:
		if v.Device < 0 {
			errs = append(errs, "video.device must not be negative")
		}
	case VideoSourceRTSP:
		if err := validateURL(v.RTSP.URL, "rtsp", "rtsps", "http", "https"); err != nil {
			errs = append(errs, "video.rtsp.url: "+err.Error())
		}
		if v.RTSP.Transport != "tcp" && v.RTSP.Transport != "udp" {
			errs = append(errs, fmt.Sprintf("video.rtsp.transport must be tcp or udp, got %q", v.RTSP.Transport))
		}
	case VideoSourceSnapshot:
		if err := validateURL(v.Snapshot.URL, "http", "https"); err != nil {
			errs = append(errs, "video.snapshot.url: "+err.Error())
		}
		if v.Snapshot.Interval <= 0 {
			errs = append(errs, "video.snapshot.interval must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("video.source must be one of push, device, rtsp, snapshot, got %q", v.Source))
	}
	if v.JPEGQuality < 1 || v.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("video.jpegquality must be between 1 and 100, got %d", v.JPEGQuality))
	}
	if v.FPS <= 0 {
		errs = append(errs, "video.fps must be positive")
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	var errs []string
	w := s.WebServer
	if !w.Enabled {
		return nil
	}
	if err := validatePort(w.Port); err != nil {
		errs = append(errs, "webserver.port: "+err.Error())
	}
	if w.SessionTTL <= 0 {
		errs = append(errs, "webserver.sessionttl must be positive")
	}
	if !(w.IngestRate > 0) {
		errs = append(errs, "webserver.ingestrate must be positive")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if err := validateURL(s.MQTT.Broker, "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss"); err != nil {
		errs = append(errs, "mqtt.broker: "+err.Error())
	}
	if strings.TrimSpace(s.MQTT.Topic) == "" {
		errs = append(errs, "mqtt.topic must not be empty")
	}
	return errs
}

func validateNotificationSettings(s *Settings) []string {
	if s.Notification.Enabled && len(s.Notification.URLs) == 0 {
		return []string{"notification.urls requires at least one URL when notifications are enabled"}
	}
	return nil
}

func validateTelemetrySettings(s *Settings) []string {
	if s.Telemetry.Sentry.Enabled && s.Telemetry.Sentry.DSN == "" {
		return []string{"telemetry.sentry.dsn is required when sentry is enabled"}
	}
	return nil
}

func validatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	if p < 1 || p > 65535 {
		return fmt.Errorf("port %d out of range", p)
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !slices.Contains(schemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
