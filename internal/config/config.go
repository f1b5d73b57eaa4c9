package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	AppName   = "mediaplayer"
	envPrefix = "MEDIAPLAYER"

	DefaultBusTimeout     = 5 * time.Second
	DefaultControlTimeout = 500 * time.Millisecond
	DefaultDebounce       = 250 * time.Millisecond
)

// AppConfig holds application configuration
type AppConfig struct {
	LogLevel  zapcore.Level
	LogFormat string // "console" or "json"

	// BusTimeout bounds discovery calls
	BusTimeout time.Duration
	// ControlTimeout bounds playback commands
	ControlTimeout time.Duration
	// Debounce coalesces change bursts in watch mode
	Debounce time.Duration

	Serve    ServeConfig
	Zeroconf ZeroconfConfig
	Artwork  ArtworkConfig
}

// ServeConfig controls snapshot publication over WebSocket
type ServeConfig struct {
	Enabled bool
	Addr    string
}

// ZeroconfConfig controls mDNS advertisement of the WebSocket endpoint
type ZeroconfConfig struct {
	Enabled  bool
	Instance string
}

// ArtworkConfig controls the cover thumbnail command
type ArtworkConfig struct {
	Size   int
	Output string
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"timeout":         "bus.timeout",
	"control-timeout": "control.timeout",
	"debounce":        "watch.debounce",
	"serve":           "serve.enabled",
	"addr":            "serve.addr",
	"zeroconf":        "zeroconf.enabled",
	"size":            "artwork.size",
	"out":             "artwork.output",
}

// RegisterFlags declares the configuration flags on fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	fs.String("log-format", "console", "Log encoding (console, json)")
	fs.Duration("timeout", DefaultBusTimeout, "Timeout for bus queries")
	fs.Duration("control-timeout", DefaultControlTimeout, "Timeout for playback commands")
	fs.Duration("debounce", DefaultDebounce, "Coalesce changes within this window (watch)")
	fs.Bool("serve", false, "Publish snapshots over WebSocket (watch)")
	fs.String("addr", "127.0.0.1:8765", "Listen address for --serve")
	fs.Bool("zeroconf", false, "Advertise the WebSocket endpoint over mDNS (watch)")
	fs.Int("size", 300, "Cover thumbnail size in pixels (art)")
	fs.String("out", "cover.png", "Cover thumbnail output path (art)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("bus.timeout", DefaultBusTimeout)
	v.SetDefault("control.timeout", DefaultControlTimeout)
	v.SetDefault("watch.debounce", DefaultDebounce)
	v.SetDefault("serve.enabled", false)
	v.SetDefault("serve.addr", "127.0.0.1:8765")
	v.SetDefault("zeroconf.enabled", false)
	v.SetDefault("zeroconf.instance", AppName)
	v.SetDefault("artwork.size", 300)
	v.SetDefault("artwork.output", "cover.png")
}

// Load resolves configuration from defaults, the optional config file,
// MEDIAPLAYER_* environment variables and flags, in increasing precedence.
// fs may be nil.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*AppConfig, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configHome := configHome(); configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, AppName))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if fs != nil {
		for flagName, key := range flagKeys {
			f := fs.Lookup(flagName)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	level, err := zapcore.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	format := strings.ToLower(v.GetString("log.format"))
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("invalid log format: %q", format)
	}

	cfg := &AppConfig{
		LogLevel:       level,
		LogFormat:      format,
		BusTimeout:     v.GetDuration("bus.timeout"),
		ControlTimeout: v.GetDuration("control.timeout"),
		Debounce:       v.GetDuration("watch.debounce"),
		Serve: ServeConfig{
			Enabled: v.GetBool("serve.enabled"),
			Addr:    v.GetString("serve.addr"),
		},
		Zeroconf: ZeroconfConfig{
			Enabled:  v.GetBool("zeroconf.enabled"),
			Instance: v.GetString("zeroconf.instance"),
		},
		Artwork: ArtworkConfig{
			Size:   v.GetInt("artwork.size"),
			Output: expandPath(v.GetString("artwork.output")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with
func (c *AppConfig) Validate() error {
	if c.BusTimeout <= 0 {
		return fmt.Errorf("invalid bus timeout: %s", c.BusTimeout)
	}
	if c.ControlTimeout <= 0 {
		return fmt.Errorf("invalid control timeout: %s", c.ControlTimeout)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("invalid debounce: %s", c.Debounce)
	}
	if c.Artwork.Size <= 0 {
		return fmt.Errorf("invalid artwork size: %d", c.Artwork.Size)
	}
	if c.Serve.Enabled && c.Serve.Addr == "" {
		return errors.New("serve enabled without an address")
	}
	if c.Zeroconf.Enabled && !c.Serve.Enabled {
		return errors.New("zeroconf requires serve to be enabled")
	}
	return nil
}

// configHome follows XDG: $XDG_CONFIG_HOME, then ~/.config
func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return path
}
