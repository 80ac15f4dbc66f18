package config_manager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// CurrentConfigVersion is the latest version of the sensor config format.
const CurrentConfigVersion = "v0.2.0"

var logger = logrus.WithField("module", "config_manager")

// ConfigManager manages the configuration file
type ConfigManager struct {
	FilePath string
}

// NewConfigManager creates a new ConfigManager instance
func NewConfigManager(filePath string) (*ConfigManager, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("config file path is empty")
	}
	return &ConfigManager{FilePath: filePath}, nil
}

// LoadConfig reads, defaults and validates the managed file.
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(cm.FilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", cm.FilePath, err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cm.FilePath, err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to the managed file, as YAML when the
// file name ends in .yaml/.yml and as indented JSON otherwise.
func (cm *ConfigManager) SaveConfig(config *Config) error {
	var (
		data []byte
		err  error
	)
	if cm.isYAML() {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cm.FilePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return writeFileAtomic(cm.FilePath, data)
}

// writeFileAtomic replaces path through a synced temp file in the same
// directory, so a crash leaves either the old or the new file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

func (cm *ConfigManager) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(cm.FilePath))
	return ext == ".yaml" || ext == ".yml"
}

// EnsureDefaultConfig returns the managed config, writing the defaults when the
// file does not exist and migrating files written by older versions.
func (cm *ConfigManager) EnsureDefaultConfig() (*Config, error) {
	data, err := os.ReadFile(cm.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := NewDefaultConfig()
			logger.WithField("path", cm.FilePath).Info("Config file not found, writing defaults")
			return cfg, cm.SaveConfig(cfg)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", cm.FilePath, err)
	}

	migrated, err := migrateConfig(cfg)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cm.FilePath, err)
	}
	if migrated {
		logger.WithFields(logrus.Fields{
			"path":    cm.FilePath,
			"version": cfg.ConfigVersion,
		}).Info("Migrated config file")
		if err := cm.SaveConfig(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// migrateConfig brings cfg up to CurrentConfigVersion. It reports whether
// anything changed.
func migrateConfig(cfg *Config) (bool, error) {
	current, err := version.NewVersion(CurrentConfigVersion)
	if err != nil {
		return false, err
	}
	if cfg.ConfigVersion == "" {
		// Files without a version predate band rotation.
		cfg.ConfigVersion = "v0.0.1"
	}
	fileVersion, err := version.NewVersion(cfg.ConfigVersion)
	if err != nil {
		return false, fmt.Errorf("invalid config_version %q: %w", cfg.ConfigVersion, err)
	}
	if fileVersion.GreaterThan(current) {
		logger.WithFields(logrus.Fields{
			"file_version":    fileVersion.String(),
			"current_version": current.String(),
		}).Warn("Config file is newer than this build, reading it as-is")
		return false, nil
	}
	if fileVersion.Equal(current) {
		return false, nil
	}

	// v0.1.x stored the legacy band policy names.
	for i := range cfg.Wlans {
		r := &cfg.Wlans[i].BandRotation
		switch r.Policy {
		case "2G":
			r.Policy = PolicyFixed2G
		case "5G":
			r.Policy = PolicyFixed5G
		}
		if r.RoundsElapsed < 0 {
			r.RoundsElapsed = 0
		}
	}
	cfg.ConfigVersion = CurrentConfigVersion
	return true, nil
}

// UpdateBandRotation persists the rotation state returned by a connect cycle.
func (cm *ConfigManager) UpdateBandRotation(wlanID int, state BandRotationState) error {
	cfg, err := cm.LoadConfig()
	if err != nil {
		return err
	}
	wlan, err := cfg.FindWlan(wlanID)
	if err != nil {
		return err
	}
	wlan.BandRotation = state
	logger.WithFields(logrus.Fields{
		"wlan_id":        wlanID,
		"policy":         state.Policy,
		"last_band_used": state.LastBandUsed,
		"rounds_elapsed": state.RoundsElapsed,
	}).Debug("Saving band rotation state")
	return cm.SaveConfig(cfg)
}
