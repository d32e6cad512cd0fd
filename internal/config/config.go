package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/andresmejia3/needle/internal/logging"
	"github.com/andresmejia3/needle/internal/palette"
	"github.com/andresmejia3/needle/internal/render"
	"gopkg.in/yaml.v3"
)

const megabyte = 1024 * 1024

// Config holds the settings shared by every command.
type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Workers   int       `yaml:"workers"`
	Limits    Limits    `yaml:"limits"`
	Thumbnail Thumbnail `yaml:"thumbnail"`
}

// Limits bounds the input accepted from the user.
type Limits struct {
	MaxInputBytes int64 `yaml:"max_input_bytes"`
}

// Thumbnail configures PNG previews.
type Thumbnail struct {
	Size       int     `yaml:"size"`
	LineWidth  float64 `yaml:"line_width"`
	Background string  `yaml:"background"`
}

// Default returns the built-in configuration.
func Default() Config {
	r := render.DefaultOptions()
	return Config{
		LogLevel: "info",
		Workers:  4,
		Limits:   Limits{MaxInputBytes: 16 * megabyte},
		Thumbnail: Thumbnail{
			Size:      r.Size,
			LineWidth: r.LineWidth,
		},
	}
}

// Load reads the configuration like Read and validates the result.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read loads the YAML file at path over the defaults, then applies environment
// overrides. An empty path skips the file. The result is not validated so
// callers can layer flag overrides first.
func Read(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.parse(data); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides values from NEEDLE_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("NEEDLE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("NEEDLE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: NEEDLE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := getenv("NEEDLE_MAX_INPUT_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: NEEDLE_MAX_INPUT_BYTES: %w", err)
		}
		c.Limits.MaxInputBytes = n
	}
	return nil
}

// Validate rejects settings no command can run with.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.Limits.MaxInputBytes <= 0 {
		return fmt.Errorf("config: limits.max_input_bytes must be > 0, got %d", c.Limits.MaxInputBytes)
	}
	if c.Thumbnail.Size < 16 {
		return fmt.Errorf("config: thumbnail.size must be >= 16, got %d", c.Thumbnail.Size)
	}
	if c.Thumbnail.LineWidth <= 0 {
		return fmt.Errorf("config: thumbnail.line_width must be > 0, got %g", c.Thumbnail.LineWidth)
	}
	if c.Thumbnail.Background != "" {
		if _, err := palette.ParseHex(c.Thumbnail.Background); err != nil {
			return fmt.Errorf("config: thumbnail.background: %w", err)
		}
	}
	return nil
}

// RenderOptions converts the thumbnail settings for the renderer.
func (c Config) RenderOptions() render.Options {
	return render.Options{
		Size:       c.Thumbnail.Size,
		LineWidth:  c.Thumbnail.LineWidth,
		Background: c.Thumbnail.Background,
	}
}
