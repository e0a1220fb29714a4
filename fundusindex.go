// Package fundusindex opens a fundus imaging dataset: it indexes fundus
// photographs with their expert contour annotations and joins them with the
// per-eye clinical spreadsheets.
//
//	cfg, err := config.Load("fundus.yaml")
//	...
//	s, err := fundusindex.Open(cfg, os.Stderr, nil)
//	...
//	p, ok := s.Patient("2", patient.Right)
package fundusindex

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mrsinham/fundusindex/internal/clinical"
	"github.com/mrsinham/fundusindex/internal/config"
	"github.com/mrsinham/fundusindex/internal/dataset"
	"github.com/mrsinham/fundusindex/internal/logging"
	"github.com/mrsinham/fundusindex/internal/metrics"
	"github.com/mrsinham/fundusindex/internal/patient"
)

// Session is an opened dataset.
type Session struct {
	Index    *dataset.Index
	Clinical *clinical.Tables // empty when clinical loading is disabled
	Metrics  *metrics.Scan    // nil when metrics are disabled
	Logger   zerolog.Logger
}

// Open validates cfg, builds the index and loads the clinical tables.
// Logs go to logOut (stderr when nil). Metrics, when enabled, are registered on reg;
// a nil reg keeps them unregistered.
func Open(cfg *config.Config, logOut io.Writer, reg prometheus.Registerer) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.LoggingOptions(), logOut)
	if err != nil {
		return nil, err
	}

	var scan *metrics.Scan
	if cfg.Metrics.Enabled {
		if scan, err = metrics.NewScan(reg); err != nil {
			return nil, err
		}
	}

	indexOpts, err := config.ToIndexOptions(cfg, logger, scan)
	if err != nil {
		return nil, err
	}
	ix, err := dataset.Build(cfg.BasePath, indexOpts)
	if err != nil {
		return nil, err
	}

	tables := clinical.NewTables(logger)
	if cfg.Clinical.Enabled {
		clinicalOpts, err := config.ToClinicalOptions(cfg)
		if err != nil {
			return nil, err
		}
		tables = clinical.Load(cfg.BasePath, clinicalOpts, logger)
	}

	return &Session{
		Index:    ix,
		Clinical: tables,
		Metrics:  scan,
		Logger:   logger,
	}, nil
}

// Patient returns the record of a patient eye joined with its clinical row.
func (s *Session) Patient(patientID string, eye patient.Eye) (patient.Enriched, bool) {
	return s.Index.Enrich(patientID, eye, s.Clinical)
}

// Lookup is Patient with the eye given as text ("OD", "left", ...).
func (s *Session) Lookup(patientID, eye string) (patient.Enriched, bool, error) {
	e, err := patient.ParseEye(eye)
	if err != nil {
		return patient.Enriched{}, false, err
	}
	p, ok := s.Patient(patientID, e)
	return p, ok, nil
}

// Summaries lists every indexed record in key order.
func (s *Session) Summaries() []patient.Summary {
	return s.Index.List()
}
