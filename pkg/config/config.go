// Package config loads spotkey run parameters from YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/spotkey/pkg/alignment"
	"github.com/ChrisMcGann/spotkey/pkg/annotation"
	"github.com/ChrisMcGann/spotkey/pkg/core"
	"github.com/ChrisMcGann/spotkey/pkg/generator"
)

// Config is the full parameter set of a spotkey run.
type Config struct {
	LogLevel   string                `yaml:"log_level"`
	Annotation annotation.Parameters `yaml:"annotation"`
	Alignment  alignment.Parameters  `yaml:"alignment"`
	Generator  generator.Config      `yaml:"generator"`
}

// Default returns every default parameter.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		Annotation: annotation.DefaultParameters(),
		Alignment:  alignment.DefaultParameters(),
		Generator:  generator.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. Environment variables in the file
// are expanded first; unknown keys are rejected. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	decoder := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid configuration in '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in '%s': %w", path, err)
	}
	return cfg, nil
}

// Env holds the settings read from SPOTKEY_* environment variables.
type Env struct {
	ConfigPath string
	LogLevel   string
	Workers    int
	MaxFiles   int
}

// FromEnv reads SPOTKEY_CONFIG, SPOTKEY_LOG_LEVEL, SPOTKEY_WORKERS and
// SPOTKEY_MAX_FILES. Unset or malformed numbers are 0.
func FromEnv() Env {
	return Env{
		ConfigPath: getenv("SPOTKEY_CONFIG", ""),
		LogLevel:   getenv("SPOTKEY_LOG_LEVEL", ""),
		Workers:    getenvInt("SPOTKEY_WORKERS", 0),
		MaxFiles:   getenvInt("SPOTKEY_MAX_FILES", 0),
	}
}

// Apply overrides the configuration with the non-zero environment settings.
func (c *Config) Apply(env Env) {
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.Workers > 0 {
		c.Annotation.Parallelism = env.Workers
	}
	if env.MaxFiles > 0 {
		c.Annotation.MaxConcurrentFiles = env.MaxFiles
	}
}

func getenv(k, fallback string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := getenv(k, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

var validate = newValidator()

// newValidator reports fields by their YAML names and knows the "adduct" tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("adduct", func(fl validator.FieldLevel) bool {
		_, ok := core.LookupAdduct(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate rejects negative tolerances, cutoffs outside [0,1] and unknown
// adduct names. Every violation is listed in one *core.ValidationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return &core.ValidationError{Field: "Config", Message: strings.Join(msgs, "; ")}
}

func fieldMessage(fe validator.FieldError) string {
	name := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "gte":
		if fe.Param() == "0" {
			return fmt.Sprintf("%s must not be negative", name)
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", name, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", name, fe.Param(), fe.Value())
	case "adduct":
		return fmt.Sprintf("%s: unknown adduct %q", name, fe.Value())
	}
	return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
}
