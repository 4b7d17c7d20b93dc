package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix     = "BIRDBOARD_"
	EnvConfigFile = "BIRDBOARD_CONFIG"
	EnvDotenvFile = "BIRDBOARD_ENV_FILE"

	// legacyAPIKeyEnv is read when no api_key is configured.
	legacyAPIKeyEnv = "EBIRD_API_KEY"

	maxLookbackDays = 30
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if BIRDBOARD_CONFIG is set
//  3. env (prefix BIRDBOARD_), after loading the dotenv file named by
//     BIRDBOARD_ENV_FILE; variables already set are not overridden
//
// A photo_mapping_file, if named, is merged over the inline photo_mapping.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if path := os.Getenv(EnvDotenvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BIRDBOARD_API_KEY -> api_key. Underscores are kept to match the
	// koanf tags on the struct.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(legacyAPIKeyEnv)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if cfg.PhotoMappingFile != "" {
		extra, err := LoadPhotoMapping(cfg.PhotoMappingFile)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]string, len(cfg.PhotoMapping)+len(extra))
		for code, u := range cfg.PhotoMapping {
			merged[code] = u
		}
		for code, u := range extra {
			merged[code] = u
		}
		cfg.PhotoMapping = merged
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadPhotoMapping reads a flat species code -> URL table from a YAML or
// JSON file.
func LoadPhotoMapping(path string) (map[string]string, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: photo mapping %s: %w", ErrLoadConfig, path, err)
	}

	out := make(map[string]string, len(k.Keys()))
	for key, v := range k.All() {
		s, ok := v.(string)
		if !ok || strings.Contains(key, ".") {
			return nil, fmt.Errorf("%w: photo mapping %s: entry %q is not a flat string", ErrInvalidConfig, path, key)
		}
		out[key] = strings.TrimSpace(s)
	}
	return out, nil
}

// Validate checks the values a service cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		errs = append(errs, errors.New("api_base_url must not be empty"))
	}
	if c.RequestTimeoutMS <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout_ms must be positive, got %d", c.RequestTimeoutMS))
	}
	if c.RecentDays < 1 || c.RecentDays > maxLookbackDays {
		errs = append(errs, fmt.Errorf("recent_days must be between 1 and %d, got %d", maxLookbackDays, c.RecentDays))
	}
	if c.SummaryDays < 1 || c.SummaryDays > maxLookbackDays {
		errs = append(errs, fmt.Errorf("summary_days must be between 1 and %d, got %d", maxLookbackDays, c.SummaryDays))
	}
	if c.RefreshIntervalS < 0 {
		errs = append(errs, fmt.Errorf("refresh_interval_s must not be negative, got %d", c.RefreshIntervalS))
	}
	if c.MetricsIntervalS < 1 {
		errs = append(errs, fmt.Errorf("metrics_interval_s must be positive, got %d", c.MetricsIntervalS))
	}
	for code, raw := range c.PhotoMapping {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			errs = append(errs, fmt.Errorf("photo_mapping[%s] must be an absolute URL, got %q", code, raw))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
