package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stackback/stackback/pkg/models"
)

const (
	passwordEnv = "STACKBACK_REPO_PASSWORD"

	defaultMaxAgeDays    = 30
	defaultMinKeep       = 3
	defaultSafetyMaxAge  = 48 * time.Hour
	defaultNotifyTimeout = 5 * time.Second
)

type ConfigManager struct {
	configPath string
	config     *models.GlobalConfig
}

// NewConfigManager loads the config file at configPath, or the default
// ~/.stackback/config.toml when configPath is empty.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".stackback", "config.toml")
	}

	cm := &ConfigManager{configPath: configPath}
	if err := cm.Load(); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ConfigManager) Load() error {
	var config models.GlobalConfig
	if _, err := toml.DecodeFile(cm.configPath, &config); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", cm.configPath, err)
	}

	applyDefaults(&config)
	if err := resolvePassword(&config.Store); err != nil {
		return err
	}

	cm.config = &config
	return nil
}

func (cm *ConfigManager) GetConfig() *models.GlobalConfig {
	return cm.config
}

// StateDir is where run records, locks and the snapshot index live.
func (cm *ConfigManager) StateDir() string {
	return filepath.Dir(cm.configPath)
}

// ValidateStore checks that the snapshot store is usable before a run
// touches any service.
func (cm *ConfigManager) ValidateStore() error {
	if cm.config.Store.Repo == "" {
		return fmt.Errorf("store.repo not configured")
	}
	if cm.config.Store.Password == "" {
		return fmt.Errorf("store password not available: set %s or store.password_file", passwordEnv)
	}
	return nil
}

func applyDefaults(config *models.GlobalConfig) {
	if config.Retention.MaxAgeDays == 0 {
		config.Retention.MaxAgeDays = defaultMaxAgeDays
	}
	if config.Retention.MinKeep == 0 {
		config.Retention.MinKeep = defaultMinKeep
	}
	if config.Retention.SafetyMaxAge.Duration == 0 {
		config.Retention.SafetyMaxAge.Duration = defaultSafetyMaxAge
	}
	if config.Notify.Timeout.Duration == 0 {
		config.Notify.Timeout.Duration = defaultNotifyTimeout
	}
}

// resolvePassword reads the repo password once at startup; the rest of
// the program treats it as an opaque value. Env wins over file.
func resolvePassword(store *models.StoreConfig) error {
	if value := os.Getenv(passwordEnv); value != "" {
		store.Password = value
		return nil
	}
	if store.PasswordFile == "" {
		return nil
	}
	data, err := os.ReadFile(store.PasswordFile)
	if err != nil {
		return fmt.Errorf("failed to read password file: %w", err)
	}
	store.Password = strings.TrimSpace(string(data))
	return nil
}
