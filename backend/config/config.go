package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	keyPort      = "port"
	keyLogLevel  = "log-level"
	keyStaticDir = "static-dir"

	defaultPort      = 8000
	defaultLogLevel  = "info"
	defaultStaticDir = "./web"
)

var (
	ErrInvalidPort = errors.New("port must be in range 1-65535")
	ErrParseFlags  = errors.New("failed to parse command line arguments")
)

type Config struct {
	Port      int
	LogLevel  zerolog.Level
	StaticDir string
}

func (cfg Config) ListenAddr() string {
	return fmt.Sprintf(":%d", cfg.Port)
}

// Load resolves configuration from flags, environment and defaults, in that order.
// Environment variables are upper-cased keys with dashes replaced by underscores (PORT, LOG_LEVEL, STATIC_DIR).
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("chat-relay", pflag.ContinueOnError)
	fs.IntP(keyPort, "p", defaultPort, "http and websocket listen port")
	fs.StringP(keyLogLevel, "l", defaultLogLevel, "log level")
	fs.StringP(keyStaticDir, "s", defaultStaticDir, "directory with static client files")
	if err := fs.Parse(args); err != nil {
		return nil, errors.Join(ErrParseFlags, err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	port := v.GetInt(keyPort)
	if port < 1 || port > 65535 {
		return nil, ErrInvalidPort
	}
	lvl, err := zerolog.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:      port,
		LogLevel:  lvl,
		StaticDir: v.GetString(keyStaticDir),
	}, nil
}
