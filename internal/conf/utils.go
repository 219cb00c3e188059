// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/camruler/camruler/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the configuration directories for the current
// OS. When one of them already holds config.yaml only that one is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategorySystem).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", "camruler"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "camruler"),
			"/etc/camruler",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// GetFfmpegBinaryName returns the ffmpeg executable name for the current OS.
func GetFfmpegBinaryName() string {
	if runtime.GOOS == osWindows {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

// ValidateToolPath resolves an external tool: the configured path when set,
// otherwise a PATH lookup of toolName.
func ValidateToolPath(configuredPath, toolName string) (string, error) {
	if configuredPath != "" {
		if _, err := os.Stat(configuredPath); err != nil {
			return "", errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("tool", toolName).
				Build()
		}
		return configuredPath, nil
	}
	path, err := exec.LookPath(toolName)
	if err != nil {
		return "", errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("tool", toolName).
			Build()
	}
	return path, nil
}
