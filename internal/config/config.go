package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/danielpatrickdp/ecc-analyzer/internal/logging"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables read by Load.
const (
	EnvDB          = "ECC_DB"
	EnvAddr        = "ECC_ADDR"
	EnvMetricsAddr = "ECC_METRICS_ADDR"
	EnvTotalFIT    = "ECC_TOTAL_FIT"
	EnvWorkers     = "ECC_WORKERS"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
)

// #region config
// Config is the process-level configuration shared by every ecc command.
type Config struct {
	DBPath      string  `validate:"required"`
	Addr        string  `validate:"required,hostname_port"`
	MetricsAddr string  `validate:"omitempty,hostname_port"`
	TotalFIT    float64 `validate:"gte=0"`
	Workers     int     `validate:"gte=1,lte=256"`
	Log         logging.Config
}

// DefaultConfig returns the values used when no variable is set.
func DefaultConfig() Config {
	return Config{
		DBPath:      "ecc_snapshots.db",
		Addr:        "localhost:50061",
		MetricsAddr: "localhost:9464",
		TotalFIT:    0,
		Workers:     4,
		Log:         logging.DefaultConfig(),
	}
}

// #endregion config

var configValidate = validator.New()

// #region load
// Load reads the given dotenv files (".env" when none are named) into the
// process environment, then builds a Config from it. Missing files are
// skipped; variables already set take precedence over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	def := DefaultConfig()
	cfg := Config{
		DBPath:      envOr(EnvDB, def.DBPath),
		Addr:        envOr(EnvAddr, def.Addr),
		MetricsAddr: envOr(EnvMetricsAddr, def.MetricsAddr),
		Log: logging.Config{
			Level:  envOr(EnvLogLevel, def.Log.Level),
			Format: envOr(EnvLogFormat, def.Log.Format),
		}.Normalize(),
	}

	var err error
	if cfg.TotalFIT, err = envFloat(EnvTotalFIT, def.TotalFIT); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = envInt(EnvWorkers, def.Workers); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field, including the embedded log settings.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
	}
	return f, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
	}
	return n, nil
}

// #endregion helpers
