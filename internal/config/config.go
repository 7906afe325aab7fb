// Package config loads roadedit settings from defaults, an optional YAML
// file, a .env file and ROADEDIT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix      = "ROADEDIT_"
	DefaultFile    = "roadedit.yaml"
	DefaultEnvFile = ".env"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	BackendURL     string        `mapstructure:"backend_url" yaml:"backend_url"`
	ImageryURL     string        `mapstructure:"imagery_url" yaml:"imagery_url"`
	TileURL        string        `mapstructure:"tile_url" yaml:"tile_url"`
	ExportDir      string        `mapstructure:"export_dir" yaml:"export_dir"`
	SaveMode       string        `mapstructure:"save_mode" yaml:"save_mode"`
	BBoxFallback   string        `mapstructure:"bbox_fallback" yaml:"bbox_fallback"`
	DefaultBBox    []float64     `mapstructure:"default_bbox" yaml:"default_bbox"`
	InitialZoom    float64       `mapstructure:"initial_zoom" yaml:"initial_zoom"`
	FitPadding     int           `mapstructure:"fit_padding" yaml:"fit_padding"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	LogFile        string        `mapstructure:"log_file" yaml:"log_file"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
}

func defaults() map[string]any {
	return map[string]any{
		"backend_url":     "http://localhost:8000",
		"imagery_url":     "https://api.openaerialmap.org/meta",
		"tile_url":        "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		"export_dir":      ".",
		"save_mode":       "post_and_export",
		"bbox_fallback":   "default",
		"default_bbox":    []float64{30.5, 50.4, 30.6, 50.5},
		"initial_zoom":    14,
		"fit_padding":     2,
		"poll_interval":   "10s",
		"request_timeout": "15s",
		"log_file":        "roadedit.log",
		"log_level":       "info",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the configuration. An empty path falls back to roadedit.yaml
// in the working directory when it exists. Missing env files are skipped;
// with no envFiles given, .env is tried.
func Load(path string, envFiles ...string) (*Config, error) {
	values := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for k, v := range file {
			values[strings.ToLower(k)] = v
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		env, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		mergeEnv(values, env)
	}
	mergeEnv(values, environ())

	cfg, err := decode(values)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func environ() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

func mergeEnv(values map[string]any, env map[string]string) {
	for k, v := range env {
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		values[strings.ToLower(strings.TrimPrefix(k, EnvPrefix))] = v
	}
}

func decode(values map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &cfg, nil
}

// Validate checks enumerations and shapes that decoding cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend_url is required"))
	}
	switch c.SaveMode {
	case "post_and_export", "export_only":
	default:
		errs = append(errs, fmt.Errorf("save_mode %q: want post_and_export or export_only", c.SaveMode))
	}
	switch c.BBoxFallback {
	case "default", "none":
	default:
		errs = append(errs, fmt.Errorf("bbox_fallback %q: want default or none", c.BBoxFallback))
	}
	if len(c.DefaultBBox) != 4 || c.DefaultBBox[0] > c.DefaultBBox[2] || c.DefaultBBox[1] > c.DefaultBBox[3] {
		errs = append(errs, fmt.Errorf("default_bbox %v: want [minLon, minLat, maxLon, maxLat]", c.DefaultBBox))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
