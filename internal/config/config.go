// Package config resolves runtime configuration from, in rising
// precedence: built-in defaults, a YAML file, ANKIX_* environment
// variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/ankix/internal/srs"
)

const envPrefix = "ANKIX_"

// Config is the resolved runtime configuration.
type Config struct {
	// Database is the path of the SQLite store.
	Database string `koanf:"database" validate:"required"`
	// Addr is the listen address of the review web UI.
	Addr string `koanf:"addr" validate:"required,hostname_port"`
	// Markdown formats field values as markdown when rendering.
	Markdown bool `koanf:"markdown"`
	// SRS overrides the review interval table; entries are durations
	// like "10m", "4h", "3d" or "2w". Empty keeps the stored table.
	SRS []string `koanf:"srs" validate:"omitempty,min=1,dive,interval"`
}

// Table parses the configured interval override, or returns nil when
// none is set.
func (c *Config) Table() (srs.Table, error) {
	if len(c.SRS) == 0 {
		return nil, nil
	}
	return srs.ParseTable(c.SRS)
}

// Flags declares the command-line surface on a fresh flag set. The flag
// defaults double as the configuration defaults.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.String("config", "", "path of an optional YAML config file")
	f.String("database", "ankix.db", "path of the SQLite store")
	f.String("addr", "localhost:8080", "listen address of the web UI")
	f.Bool("markdown", true, "render field values as markdown")
	f.StringSlice("srs", nil, "review interval table override (e.g. 10m,4h,1d)")
	return f
}

// Load resolves configuration from the parsed flag set, the file it
// names (if any) and the environment, then validates the result.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	// Flags win; unchanged flags only contribute their defaults for
	// keys nothing else has set.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flag config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		_, err := srs.ParseDuration(fl.Field().String())
		return err == nil
	}); err != nil {
		return fmt.Errorf("failed to register interval rule: %w", err)
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
