package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	WiFi    WiFiConfig    `yaml:"wifi"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	TLS             TLSConfig     `yaml:"tls"`
	H2C             bool          `yaml:"h2c"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	BlockedCIDRs    []string      `yaml:"blockedCIDRs"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// DataConfig locates the static web root and the two JSON list files.
// The list files resolve relative to Dir unless given as absolute paths.
type DataConfig struct {
	Dir          string `yaml:"dir"`
	DevicesFile  string `yaml:"devicesFile"`
	CommandsFile string `yaml:"commandsFile"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Path *string `yaml:"path,omitempty"`
}

// WiFiConfig overrides fields of the simulated WiFi status snapshot.
type WiFiConfig struct {
	APMode    bool    `yaml:"apMode"`
	Connected *bool   `yaml:"connected,omitempty"`
	SSID      *string `yaml:"ssid,omitempty"`
	IPAddress *string `yaml:"ipAddress,omitempty"`
	APIP      string  `yaml:"apIP"`
}

const (
	DefaultAddress      = ":12000"
	DefaultDataDir      = "data"
	DefaultDevicesFile  = "devices.json"
	DefaultCommandsFile = "commands.json"
	DefaultMetricsPath  = "/metrics"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		return nil, fmt.Errorf("server.tls: certFile and keyFile are required when enabled")
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultAddress
	}

	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20 // 1 MiB
	}

	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}

	if cfg.Data.Dir == "" {
		cfg.Data.Dir = DefaultDataDir
	}
	if cfg.Data.DevicesFile == "" {
		cfg.Data.DevicesFile = DefaultDevicesFile
	}
	if cfg.Data.CommandsFile == "" {
		cfg.Data.CommandsFile = DefaultCommandsFile
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// MetricsPath returns the path the metrics endpoint is mounted on, or ""
// when it was explicitly disabled.
func (cfg *Config) MetricsPath() string {
	if cfg.Metrics.Path != nil {
		return *cfg.Metrics.Path
	}
	return DefaultMetricsPath
}

func (cfg *Config) DevicesPath() string {
	return cfg.dataPath(cfg.Data.DevicesFile)
}

func (cfg *Config) CommandsPath() string {
	return cfg.dataPath(cfg.Data.CommandsFile)
}

func (cfg *Config) dataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(cfg.Data.Dir, name)
}
