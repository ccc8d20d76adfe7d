// Package config holds the merged run configuration and the typed settings
// block of every task.
//
// Layers are applied in order: Default() base values, a config file, then
// caller overrides (flags, environment, HTTP request). Zero values never
// override, so toggles are expressed as "disabled" flags.
package config

import (
	"fmt"
	"slices"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
)

// Config is the complete configuration of one pipeline run.
type Config struct {
	// Ignore lists basenames skipped by the indexer and the watcher.
	Ignore  []string     `yaml:"ignore" json:"ignore,omitempty" mapstructure:"ignore"`
	Workers int          `yaml:"workers" json:"workers,omitempty" mapstructure:"workers" validate:"gte=1,lte=64"`
	Store   StoreConfig  `yaml:"store" json:"store" mapstructure:"store"`
	Remote  RemoteConfig `yaml:"remote" json:"remote" mapstructure:"remote"`
	Watch   WatchConfig  `yaml:"watch" json:"watch" mapstructure:"watch"`
	Tasks   Tasks        `yaml:"tasks" json:"tasks" mapstructure:"tasks"`
}

// StoreConfig selects the execution record backend.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend,omitempty" mapstructure:"backend" validate:"oneof=sqlite bbolt"`
	// Path overrides the backend's default file under the destination root.
	Path string `yaml:"path" json:"path,omitempty" mapstructure:"path"`
}

// RemoteConfig controls synchronization of the destination tree with a bucket.
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled,omitempty" mapstructure:"enabled"`
	Bucket  string `yaml:"bucket" json:"bucket,omitempty" mapstructure:"bucket" validate:"required_if=Enabled true"`
	Command string `yaml:"command" json:"command,omitempty" mapstructure:"command" validate:"required"`
}

// WatchConfig tunes the watch scheduler.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" json:"debounce_ms,omitempty" mapstructure:"debounce_ms" validate:"gte=1"`
}

// Debounce returns the debounce delay as a duration.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Default returns the base configuration.
func Default() *Config {
	return &Config{
		Ignore:  []string{".DS_Store", "Thumbs.db", ".git"},
		Workers: 1,
		Store:   StoreConfig{Backend: "sqlite"},
		Remote:  RemoteConfig{Command: "aws"},
		Watch:   WatchConfig{DebounceMS: 500},
		Tasks:   defaultTasks(),
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Ignore = slices.Clone(c.Ignore)
	out.Tasks.Resize.Dimensions = slices.Clone(c.Tasks.Resize.Dimensions)
	return &out
}

// Merge layers overrides onto a copy of base, later overrides winning, and
// applies task settings inheritance. Nil overrides are skipped.
func Merge(base *Config, overrides ...*Config) (*Config, error) {
	out := base.Clone()
	for _, o := range overrides {
		if o == nil {
			continue
		}
		if err := mergo.Merge(out, o.Clone(), mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}
	out.normalize()
	return out, nil
}

// normalize fills settings that inherit from other blocks when left unset.
func (c *Config) normalize() {
	if c.Tasks.Resize.Quality == 0 {
		c.Tasks.Resize.Quality = c.Tasks.Image.Quality
	}
	if c.Tasks.Poster.Quality == 0 {
		c.Tasks.Poster.Quality = c.Tasks.Image.Quality
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Resolve loads the optional config file at path, merges it and overrides
// onto Default() and validates the result.
func Resolve(path string, overrides ...*Config) (*Config, error) {
	layers := make([]*Config, 0, len(overrides)+1)
	if path != "" {
		fileCfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, fileCfg)
	}
	layers = append(layers, overrides...)

	cfg, err := Merge(Default(), layers...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
