package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full RMS configuration.
type Config struct {
	Monitor   MonitorConfig   `yaml:"monitor"`
	Manager   ManagerConfig   `yaml:"manager"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Storage   StorageConfig   `yaml:"storage"`
	Export    ExportConfig    `yaml:"export"`
	Log       LogConfig       `yaml:"log"`
}

// MonitorConfig controls the polling engine.
type MonitorConfig struct {
	UpdateIntervalSeconds int `yaml:"update_interval_seconds"`
	TradeHistoryDays      int `yaml:"trade_history_days"`
	// MaxMonitoredAccounts is advisory: adds above it log a warning.
	MaxMonitoredAccounts int `yaml:"max_monitored_accounts"`
}

// ManagerConfig points at the broker manager bridge.
type ManagerConfig struct {
	BaseURL  string `yaml:"base_url"`
	Login    int    `yaml:"login"`
	Password string `yaml:"password"`
}

// WebSocketConfig controls the subscriber push channel bind.
type WebSocketConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AlertsConfig holds the helper thresholds.
type AlertsConfig struct {
	MarginLevelWarning  float64 `yaml:"margin_level_warning"`
	MarginLevelCritical float64 `yaml:"margin_level_critical"`
	MaxLossThreshold    float64 `yaml:"max_loss_threshold"`
}

// StorageConfig controls the optional tick-history database.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, ":memory:", or "" to disable
}

// ExportConfig controls where JSON exports land.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file at path and overlays .env and environment
// variables. A missing config file is not an error: defaults plus the
// environment describe a complete configuration.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case os.IsNotExist(err):
		// run on defaults + env
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if cfg.Monitor.UpdateIntervalSeconds < 1 {
		return nil, fmt.Errorf("config.Load: update interval must be at least 1s, got %d", cfg.Monitor.UpdateIntervalSeconds)
	}
	return &cfg, nil
}

// UpdateInterval returns the poll period as a time.Duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Monitor.UpdateIntervalSeconds) * time.Second
}

// HistoryWindow returns the closed-trades lookback as a time.Duration.
func (c *Config) HistoryWindow() time.Duration {
	return time.Duration(c.Monitor.TradeHistoryDays) * 24 * time.Hour
}

// WSAddr returns the push channel bind address.
func (c *Config) WSAddr() string {
	return fmt.Sprintf("%s:%d", c.WebSocket.Host, c.WebSocket.Port)
}

// applyEnvOverrides overlays environment variables onto the file values.
func applyEnvOverrides(cfg *Config) {
	envInt("RMS_UPDATE_INTERVAL", &cfg.Monitor.UpdateIntervalSeconds)
	envInt("RMS_TRADE_HISTORY_DAYS", &cfg.Monitor.TradeHistoryDays)
	envInt("MAX_MONITORED_ACCOUNTS", &cfg.Monitor.MaxMonitoredAccounts)
	envStr("MANAGER_BASE_URL", &cfg.Manager.BaseURL)
	envInt("MANAGER_LOGIN", &cfg.Manager.Login)
	envStr("MANAGER_PASSWORD", &cfg.Manager.Password)
	envStr("WS_HOST", &cfg.WebSocket.Host)
	envInt("WS_PORT", &cfg.WebSocket.Port)
	envFloat("MARGIN_LEVEL_WARNING", &cfg.Alerts.MarginLevelWarning)
	envFloat("MARGIN_LEVEL_CRITICAL", &cfg.Alerts.MarginLevelCritical)
	envFloat("MAX_LOSS_THRESHOLD", &cfg.Alerts.MaxLossThreshold)
	envStr("RMS_STORAGE_DSN", &cfg.Storage.DSN)
	envStr("RMS_EXPORT_DIR", &cfg.Export.Dir)
	envStr("LOG_LEVEL", &cfg.Log.Level)
	envStr("LOG_FORMAT", &cfg.Log.Format)
}

// setDefaults fills anything the file and environment left unset.
func setDefaults(cfg *Config) {
	if cfg.Monitor.UpdateIntervalSeconds == 0 {
		cfg.Monitor.UpdateIntervalSeconds = 5
	}
	if cfg.Monitor.TradeHistoryDays <= 0 {
		cfg.Monitor.TradeHistoryDays = 30
	}
	if cfg.Monitor.MaxMonitoredAccounts <= 0 {
		cfg.Monitor.MaxMonitoredAccounts = 100000
	}
	if cfg.Manager.BaseURL == "" {
		cfg.Manager.BaseURL = "http://localhost:8443"
	}
	if cfg.WebSocket.Host == "" {
		cfg.WebSocket.Host = "0.0.0.0"
	}
	if cfg.WebSocket.Port == 0 {
		cfg.WebSocket.Port = 8765
	}
	if cfg.Alerts.MarginLevelWarning == 0 {
		cfg.Alerts.MarginLevelWarning = 150.0
	}
	if cfg.Alerts.MarginLevelCritical == 0 {
		cfg.Alerts.MarginLevelCritical = 100.0
	}
	if cfg.Alerts.MaxLossThreshold == 0 {
		cfg.Alerts.MaxLossThreshold = -1000.0
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "exports"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
