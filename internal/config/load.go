package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables read by FromViper.
const EnvPrefix = "TOMMY"

// Load reads an override layer from a .yaml, .yml, .json or .cue file.
// Unknown fields are rejected. The result is not merged or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".cue":
		if err := decodeCUE(path, data, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return fmt.Errorf("building CUE config: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE config is not concrete: %w", err)
	}
	if err := value.Decode(cfg); err != nil {
		return fmt.Errorf("decoding CUE config: %w", err)
	}
	return nil
}

// viperKeys are the settings that can come from flags or TOMMY_* variables.
var viperKeys = []string{
	"workers",
	"store.backend",
	"store.path",
	"remote.enabled",
	"remote.bucket",
	"remote.command",
	"watch.debounce_ms",
}

// BindEnv registers the TOMMY_* environment variables on v, so that
// STORE_BACKEND style names map onto store.backend.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range viperKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// FromViper returns the override layer held by v (bound flags and
// environment). Unset keys stay zero and therefore never override.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode flags and environment: %w", err)
	}
	return cfg, nil
}
