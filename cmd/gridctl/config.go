package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/hupe1980/gridgo"
	"github.com/hupe1980/gridgo/storage"
	"github.com/hupe1980/gridgo/storage/badgerstore"
)

// Config is the gridctl configuration.
//
// Sources, highest precedence first: environment variables (GRIDCTL_*),
// the configuration file, built-in defaults. The dataset path always comes
// from the command line, never from the file.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum level to output: debug, info, warn or error.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// StoreConfig selects the backend the dataset is read from. Only the
// section matching Type is used.
type StoreConfig struct {
	// Type is the store implementation: local or badger.
	Type string `mapstructure:"type" validate:"required,oneof=local badger"`

	// Badger holds BadgerDB-specific options, decoded per command.
	Badger map[string]any `mapstructure:"badger"`
}

// badgerStoreOptions are the BadgerDB knobs gridctl exposes.
type badgerStoreOptions struct {
	InMemory    bool          `mapstructure:"in_memory"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

var validate = validator.New()

// loadConfig reads and validates the configuration. An empty path means
// "use defaults plus environment"; a missing explicit file is an error.
func loadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("GRIDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
	v.SetDefault("store.type", "local")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

// formatValidationError turns the first validator failure into a message a
// user can act on.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on %q (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// openStore builds the configured store rooted at path.
func (cfg *Config) openStore(path string) (storage.Store, error) {
	switch cfg.Store.Type {
	case "local":
		return storage.NewLocalStore(path)
	case "badger":
		opts, err := cfg.badgerOptions()
		if err != nil {
			return nil, err
		}
		var fns []badgerstore.Option
		if opts.InMemory {
			fns = append(fns, badgerstore.WithInMemory())
		}
		return badgerstore.New(path, fns...)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// badgerOptions decodes the badger section, with string durations like
// "5s" accepted for timeout fields.
func (cfg *Config) badgerOptions() (*badgerStoreOptions, error) {
	var opts badgerStoreOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(cfg.Store.Badger); err != nil {
		return nil, fmt.Errorf("decode badger store options: %w", err)
	}
	return &opts, nil
}

// logger builds the configured gridgo logger.
func (cfg *Config) logger() *gridgo.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	if cfg.Logging.Format == "json" {
		return gridgo.NewJSONLogger(level)
	}
	return gridgo.NewTextLogger(level)
}
