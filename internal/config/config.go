// Package config loads fundusindex settings from an optional YAML file and
// FUNDUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mrsinham/fundusindex/internal/clinical"
	"github.com/mrsinham/fundusindex/internal/dataset"
	"github.com/mrsinham/fundusindex/internal/logging"
	"github.com/mrsinham/fundusindex/internal/util"
)

// EnvPrefix prefixes every environment override, e.g. FUNDUS_BASE_PATH or FUNDUS_LOG_LEVEL.
const EnvPrefix = "FUNDUS"

// Config is the complete configuration of a dataset session.
type Config struct {
	BasePath string         `mapstructure:"base_path" yaml:"base_path"`
	Layout   LayoutConfig   `mapstructure:"layout" yaml:"layout"`
	Clinical ClinicalConfig `mapstructure:"clinical" yaml:"clinical"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// LayoutConfig mirrors dataset.Layout with a human-readable size limit.
type LayoutConfig struct {
	FundusDir         string   `mapstructure:"fundus_dir" yaml:"fundus_dir"`
	ContoursDir       string   `mapstructure:"contours_dir" yaml:"contours_dir"`
	OverlaysDir       string   `mapstructure:"overlays_dir" yaml:"overlays_dir"`
	ImageExtensions   []string `mapstructure:"image_extensions" yaml:"image_extensions"`
	ContourExtensions []string `mapstructure:"contour_extensions" yaml:"contour_extensions"`
	MaxImageSize      string   `mapstructure:"max_image_size" yaml:"max_image_size"` // e.g. "50MB", empty for no limit
}

// ClinicalConfig mirrors clinical.Options.
type ClinicalConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir             string `mapstructure:"dir" yaml:"dir"`
	RightFile       string `mapstructure:"right_file" yaml:"right_file"`
	LeftFile        string `mapstructure:"left_file" yaml:"left_file"`
	HeaderRowOffset int    `mapstructure:"header_row_offset" yaml:"header_row_offset"`
	Mode            string `mapstructure:"mode" yaml:"mode"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig toggles scan metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

func setDefaults(v *viper.Viper) {
	layout := dataset.DefaultLayout()
	v.SetDefault("base_path", "")
	v.SetDefault("layout.fundus_dir", layout.FundusDir)
	v.SetDefault("layout.contours_dir", layout.ContoursDir)
	v.SetDefault("layout.overlays_dir", layout.OverlaysDir)
	v.SetDefault("layout.image_extensions", layout.ImageExtensions)
	v.SetDefault("layout.contour_extensions", layout.ContourExtensions)
	v.SetDefault("layout.max_image_size", "")

	clin := clinical.DefaultOptions()
	v.SetDefault("clinical.enabled", true)
	v.SetDefault("clinical.dir", clin.Dir)
	v.SetDefault("clinical.right_file", clin.RightFile)
	v.SetDefault("clinical.left_file", clin.LeftFile)
	v.SetDefault("clinical.header_row_offset", clin.HeaderRowOffset)
	v.SetDefault("clinical.mode", string(clin.Mode))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatJSON)

	v.SetDefault("metrics.enabled", false)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("decode default config: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load reads the YAML file at path, if path is not empty, then applies
// FUNDUS_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can build an index.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BasePath) == "" {
		return errors.New("base_path is required")
	}
	if _, err := c.layout(); err != nil {
		return err
	}
	if _, err := ToClinicalOptions(c); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return logging.ValidateFormat(c.Log.Format)
}

// LoggingOptions returns the logger settings.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format, App: "fundusindex"}
}

func (c *Config) layout() (dataset.Layout, error) {
	maxBytes, err := util.ParseSize(c.Layout.MaxImageSize)
	if err != nil {
		return dataset.Layout{}, fmt.Errorf("layout.max_image_size: %w", err)
	}
	l := dataset.Layout{
		FundusDir:         c.Layout.FundusDir,
		ContoursDir:       c.Layout.ContoursDir,
		OverlaysDir:       c.Layout.OverlaysDir,
		ImageExtensions:   normalizeExtensions(c.Layout.ImageExtensions),
		ContourExtensions: normalizeExtensions(c.Layout.ContourExtensions),
		MaxImageBytes:     maxBytes,
	}
	if err := l.Validate(); err != nil {
		return dataset.Layout{}, fmt.Errorf("layout: %w", err)
	}
	return l, nil
}

// normalizeExtensions lowercases, trims and dot-prefixes extensions, dropping blanks.
func normalizeExtensions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// SaveToYAML writes cfg to path.
func SaveToYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
