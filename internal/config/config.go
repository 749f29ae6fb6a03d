package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Port         int      `mapstructure:"port"`
	DBPath       string   `mapstructure:"db_path"`
	IgnoreList   []string `mapstructure:"ignore_list"`
	ScanWorkers  int      `mapstructure:"scan_workers"`
	BackupPrefix string   `mapstructure:"backup_prefix"`
	MaxBodySize  string   `mapstructure:"max_body_size"`
	WatchRoots   bool     `mapstructure:"watch_roots"`
}

var Default = Config{
	Port:         9400,
	DBPath:       "restruct.db",
	IgnoreList:   []string{".git", ".DS_Store", "*.tmp", "*.swp"},
	ScanWorkers:  8,
	BackupPrefix: ".restruct-backup",
	MaxBodySize:  "16M",
	WatchRoots:   true,
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".restruct")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("port", Default.Port)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("ignore_list", Default.IgnoreList)
	viper.SetDefault("scan_workers", Default.ScanWorkers)
	viper.SetDefault("backup_prefix", Default.BackupPrefix)
	viper.SetDefault("max_body_size", Default.MaxBodySize)
	viper.SetDefault("watch_roots", Default.WatchRoots)

	viper.SetEnvPrefix("RESTRUCT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
