package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrsinham/fundusindex/internal/clinical"
	"github.com/mrsinham/fundusindex/internal/dataset"
	"github.com/mrsinham/fundusindex/internal/metrics"
)

// ToIndexOptions converts cfg into dataset build options.
// scan may be nil.
func ToIndexOptions(cfg *Config, logger zerolog.Logger, scan *metrics.Scan) (dataset.Options, error) {
	layout, err := cfg.layout()
	if err != nil {
		return dataset.Options{}, err
	}
	return dataset.Options{
		Layout:  layout,
		Logger:  logger,
		Metrics: scan,
	}, nil
}

// ToClinicalOptions converts cfg into clinical table options.
func ToClinicalOptions(cfg *Config) (clinical.Options, error) {
	mode, err := clinical.ParseColumnMode(cfg.Clinical.Mode)
	if err != nil {
		return clinical.Options{}, fmt.Errorf("clinical.mode: %w", err)
	}
	opts := clinical.Options{
		Dir:             cfg.Clinical.Dir,
		RightFile:       cfg.Clinical.RightFile,
		LeftFile:        cfg.Clinical.LeftFile,
		HeaderRowOffset: cfg.Clinical.HeaderRowOffset,
		Mode:            mode,
	}
	if err := opts.Validate(); err != nil {
		return clinical.Options{}, fmt.Errorf("clinical: %w", err)
	}
	return opts, nil
}
