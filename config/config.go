// Package config loads configuration structs from the environment.
//
// Fields are bound with envconfig tags:
//
//	type Config struct {
//		Service string        `envconfig:"SERVICE" required:"true"`
//		Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`
//	}
//
// Values can also come from a YAML file or a .env file. Both only fill in
// variables the environment does not already set, so the real environment
// always wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Validator is implemented by configs with constraints beyond tags.
type Validator interface {
	Validate() error
}

// Parse fills a T from unprefixed environment variables.
func Parse[T any]() (T, error) {
	return ParseWithPrefix[T]("")
}

// ParseWithPrefix fills a T from variables named PREFIX_FIELD.
func ParseWithPrefix[T any](prefix string) (T, error) {
	var cfg T
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load applies the YAML file at path, if path is non-empty, and then parses
// T with prefix.
func Load[T any](prefix, path string) (T, error) {
	if path != "" {
		if err := LoadFile(path); err != nil {
			var zero T
			return zero, err
		}
	}
	return ParseWithPrefix[T](prefix)
}

// From validates a config built some other way.
func From[T any](cfg T) (T, error) {
	return cfg, validate(&cfg)
}

func validate(cfg any) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env style files. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: %s: %w", f, err)
		}
	}
	return nil
}

// LoadFile reads a flat YAML mapping of variable names to values:
//
//	OTEX_SERVICE: checkout
//	OTEX_TRACE_SAMPLE_RATE: 0.25
//	OTEX_HEADERS:
//	  x-api-key: secret
//
// Lists become comma-separated and mappings key:value pairs, the forms
// envconfig decodes.
func LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	for k, v := range values {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, envString(v)); err != nil {
			return fmt.Errorf("config: %s: %w", k, err)
		}
	}
	return nil
}

func envString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = envString(p)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + envString(val[k])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}
