package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/retry"
)

// Desktop notification preferences persisted after the first prompt.
const (
	DesktopAsk     = "ask"
	DesktopGranted = "granted"
	DesktopDenied  = "denied"
)

// ServerConfig points the client at an orderbell server.
type ServerConfig struct {
	// URL is the http(s) base URL; the websocket URL is derived from it.
	URL string `mapstructure:"url" yaml:"url"`

	// User is a display label for the logged-in staff member.
	User string `mapstructure:"user" yaml:"user"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// BadgeCap is the largest count the bell shows before switching to "N+".
	BadgeCap int `mapstructure:"badge_cap" yaml:"badge_cap"`
}

// AlertConfig controls the chime and desktop notifications.
type AlertConfig struct {
	// Desktop is one of DesktopAsk, DesktopGranted or DesktopDenied.
	Desktop string `mapstructure:"desktop" yaml:"desktop"`
	Chime   bool   `mapstructure:"chime" yaml:"chime"`

	// QueueSize bounds pending alerts; overflow is dropped.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// ReconnectConfig is the backoff used after the connection drops.
type ReconnectConfig struct {
	// Attempts is the number of consecutive failed dials before the session
	// gives up. Zero means retry forever.
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	Backoff  float64       `mapstructure:"backoff" yaml:"backoff"`
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// Strategy converts the config into a retry strategy.
func (r ReconnectConfig) Strategy() retry.Strategy {
	return retry.Strategy{
		Attempts: r.Attempts,
		Delay:    r.Delay,
		Backoff:  r.Backoff,
	}
}

// AppConfig is the top-level client configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Alerts    AlertConfig     `mapstructure:"alerts" yaml:"alerts"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
}

// ConfigDir returns ~/.config/orderbell, or the working directory if the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "orderbell")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/orderbell/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultLogPath returns the file the client logs to while the TUI owns stdout.
func DefaultLogPath() string {
	return filepath.Join(ConfigDir(), "orderbell.log")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			URL: "http://localhost:8080",
		},
		Display: DisplayConfig{
			BadgeCap: 9,
		},
		Alerts: AlertConfig{
			Desktop:   DesktopAsk,
			Chime:     true,
			QueueSize: 32,
		},
		Reconnect: ReconnectConfig{
			Attempts: 0,
			Delay:    time.Second,
			Backoff:  2,
			MaxDelay: 30 * time.Second,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	d := defaultAppConfig()
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("display.badge_cap", d.Display.BadgeCap)
	v.SetDefault("alerts.desktop", d.Alerts.Desktop)
	v.SetDefault("alerts.chime", d.Alerts.Chime)
	v.SetDefault("alerts.queue_size", d.Alerts.QueueSize)
	v.SetDefault("reconnect.attempts", d.Reconnect.Attempts)
	v.SetDefault("reconnect.delay", d.Reconnect.Delay)
	v.SetDefault("reconnect.backoff", d.Reconnect.Backoff)
	v.SetDefault("reconnect.max_delay", d.Reconnect.MaxDelay)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch cfg.Alerts.Desktop {
	case DesktopAsk, DesktopGranted, DesktopDenied:
	default:
		cfg.Alerts.Desktop = DesktopAsk
	}
	if cfg.Display.BadgeCap <= 0 {
		cfg.Display.BadgeCap = d.Display.BadgeCap
	}
	if cfg.Reconnect.Backoff < 1 {
		cfg.Reconnect.Backoff = 1
	}
	if cfg.Reconnect.Delay <= 0 {
		cfg.Reconnect.Delay = d.Reconnect.Delay
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server.url", cfg.Server.URL)
	v.Set("server.user", cfg.Server.User)
	v.Set("display.badge_cap", cfg.Display.BadgeCap)
	v.Set("alerts.desktop", cfg.Alerts.Desktop)
	v.Set("alerts.chime", cfg.Alerts.Chime)
	v.Set("alerts.queue_size", cfg.Alerts.QueueSize)
	v.Set("reconnect.attempts", cfg.Reconnect.Attempts)
	v.Set("reconnect.delay", cfg.Reconnect.Delay.String())
	v.Set("reconnect.backoff", cfg.Reconnect.Backoff)
	v.Set("reconnect.max_delay", cfg.Reconnect.MaxDelay.String())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
