package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// GlobalConfigDir returns the path to the global deskpilot directory.
// DESKPILOT_HOME wins when set; otherwise this is ~/.deskpilot.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if dir := os.Getenv(constants.HomeEnvVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", dperrors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.HomeDirName), nil
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
// This is always .deskpilot/config.yaml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(constants.ProjectConfigDir, constants.GlobalConfigName)
}

// DataDir resolves a data subdirectory: configured wins, otherwise
// ~/.deskpilot/<name>.
func DataDir(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ScreenshotsDir returns the directory screenshots are written to.
func (c *Config) ScreenshotsDir() (string, error) {
	return DataDir(c.Capture.Dir, constants.ScreenshotsDir)
}

// HistoryDir returns the directory session histories are written to.
func (c *Config) HistoryDir() (string, error) {
	return DataDir(c.Agent.HistoryDir, constants.HistoryDir)
}

// AssetsDir returns the directory reference glyphs are loaded from.
func (c *Config) AssetsDir() (string, error) {
	return DataDir(c.Detection.AssetsDir, constants.AssetsDir)
}

// LogsDir returns the directory the CLI log file lives in.
func LogsDir() (string, error) {
	return DataDir("", constants.LogsDir)
}
