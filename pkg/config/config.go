package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the server's full runtime configuration: BLE link timeouts,
// HTTP/WebSocket ports, persistent-state paths, and the processing window
// sizes §3 pins per sensor.
type Config struct {
	LogLevel      logrus.Level  `mapstructure:"-"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout"`
	DeviceTimeout time.Duration `mapstructure:"device_timeout"`
	OutputFormat  string        `mapstructure:"output_format"`

	HTTPPort int `mapstructure:"http_port"`
	WSPort   int `mapstructure:"ws_port"`

	CatalogPath string `mapstructure:"catalog_path"`
	SessionDB   string `mapstructure:"session_db"`
	ExportRoot  string `mapstructure:"export_root"`

	EEGWindow time.Duration `mapstructure:"eeg_window"`
	EEGHop    time.Duration `mapstructure:"eeg_hop"`
	PPGWindow time.Duration `mapstructure:"ppg_window"`
	PPGHop    time.Duration `mapstructure:"ppg_hop"`
	ACCWindow time.Duration `mapstructure:"acc_window"`
	ACCHop    time.Duration `mapstructure:"acc_hop"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      logrus.InfoLevel,
		ScanTimeout:   10 * time.Second,
		DeviceTimeout: 30 * time.Second,
		OutputFormat:  "table", // table, json, csv

		HTTPPort: 8121,
		WSPort:   18765,

		CatalogPath: "linkband-devices.db",
		SessionDB:   "linkband-sessions.db",
		ExportRoot:  "./recordings",

		EEGWindow: 10 * time.Second,
		EEGHop:    1 * time.Second,
		PPGWindow: 60 * time.Second,
		PPGHop:    1 * time.Second,
		ACCWindow: 4 * time.Second,
		ACCHop:    1 * time.Second,
	}
}

// Load layers configuration from (lowest to highest precedence) built-in
// defaults, an optional config file, and LINKBAND_-prefixed environment
// variables. configPath may be empty, in which case only defaults and env
// vars apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKBAND")
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("log_level", def.LogLevel.String())
	v.SetDefault("scan_timeout", def.ScanTimeout)
	v.SetDefault("device_timeout", def.DeviceTimeout)
	v.SetDefault("output_format", def.OutputFormat)
	v.SetDefault("http_port", def.HTTPPort)
	v.SetDefault("ws_port", def.WSPort)
	v.SetDefault("catalog_path", def.CatalogPath)
	v.SetDefault("session_db", def.SessionDB)
	v.SetDefault("export_root", def.ExportRoot)
	v.SetDefault("eeg_window", def.EEGWindow)
	v.SetDefault("eeg_hop", def.EEGHop)
	v.SetDefault("ppg_window", def.PPGWindow)
	v.SetDefault("ppg_hop", def.PPGHop)
	v.SetDefault("acc_window", def.ACCWindow)
	v.SetDefault("acc_hop", def.ACCHop)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	level, err := logrus.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("parse log_level: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
