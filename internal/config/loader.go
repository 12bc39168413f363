package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "NURTURE_"
	envFileVar = "NURTURE_CONFIG"
)

// LoadDotEnv loads KEY=VALUE pairs from paths (".env" when none) into the
// process environment. Missing files are skipped and variables already set
// win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%w: %s: %v", ErrLoadConfig, p, err)
		}
	}
	return nil
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if NURTURE_CONFIG is set
//  3. env (prefix NURTURE_, "__" separates nested keys)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// NURTURE_DISPATCH_BATCH_SIZE -> dispatch_batch_size
	// NURTURE_LLM__API_KEY        -> llm.api_key
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if key == envFileVar {
			return "", nil
		}
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		if key == "admin_emails" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	// Maps merge key by key in mapstructure; start from an empty map so a
	// configured weight table replaces the defaults instead of extending them.
	if k.Exists("category_weights") {
		cfg.CategoryWeights = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	case c.UpstreamTimeoutMS <= 0:
		return fmt.Errorf("%w: upstream_timeout_ms must be positive", ErrInvalidConfig)
	case c.DispatchBatchSize <= 0:
		return fmt.Errorf("%w: dispatch_batch_size must be positive", ErrInvalidConfig)
	case c.DispatchWorkers <= 0:
		return fmt.Errorf("%w: dispatch_workers must be positive", ErrInvalidConfig)
	case c.GapCount <= 0:
		return fmt.Errorf("%w: gap_count must be positive", ErrInvalidConfig)
	case c.DefaultCategoryWeight <= 0:
		return fmt.Errorf("%w: default_category_weight must be positive", ErrInvalidConfig)
	}
	for category, w := range c.CategoryWeights {
		if w <= 0 {
			return fmt.Errorf("%w: weight for %q must be positive", ErrInvalidConfig, category)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return out
}
