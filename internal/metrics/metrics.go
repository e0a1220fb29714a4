// Package metrics holds Prometheus collectors describing dataset index builds.
//
// Collectors are registered on a caller-supplied Registerer; nothing is served.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Source tree labels.
const (
	SourceFundus   = "fundus"
	SourceContours = "contours"
	SourceOverlays = "overlays"
)

// Scan collects statistics about index builds.
type Scan struct {
	FilesSeen          *prometheus.CounterVec
	ParseMisses        *prometheus.CounterVec
	Collisions         prometheus.Counter
	ConstructionErrors prometheus.Counter
	RecordsIndexed     prometheus.Gauge
	BuildDuration      prometheus.Histogram
}

// NewScan creates the scan collectors and registers them on reg.
// A nil reg leaves them unregistered. Collectors already present on reg are reused,
// so several indexes may share one registry.
func NewScan(reg prometheus.Registerer) (*Scan, error) {
	s := &Scan{
		FilesSeen: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundusindex_files_seen_total",
				Help: "Files examined during index builds, by source tree",
			},
			[]string{"source"},
		),
		ParseMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fundusindex_parse_misses_total",
				Help: "File names that matched no naming convention, by source tree",
			},
			[]string{"source"},
		),
		Collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fundusindex_key_collisions_total",
			Help: "Fundus images replacing an earlier image with the same patient and eye",
		}),
		ConstructionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fundusindex_construction_errors_total",
			Help: "Patient records rejected during construction",
		}),
		RecordsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fundusindex_records",
			Help: "Patient records held by the most recent index build",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fundusindex_build_duration_seconds",
			Help:    "Time spent building an index",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg == nil {
		return s, nil
	}

	var err error
	if s.FilesSeen, err = register(reg, s.FilesSeen); err != nil {
		return nil, err
	}
	if s.ParseMisses, err = register(reg, s.ParseMisses); err != nil {
		return nil, err
	}
	if s.Collisions, err = register(reg, s.Collisions); err != nil {
		return nil, err
	}
	if s.ConstructionErrors, err = register(reg, s.ConstructionErrors); err != nil {
		return nil, err
	}
	if s.RecordsIndexed, err = register(reg, s.RecordsIndexed); err != nil {
		return nil, err
	}
	if s.BuildDuration, err = register(reg, s.BuildDuration); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, returning the already registered collector when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metrics: %w", err)
}

// The methods below accept a nil *Scan so callers need no guard.

// FileSeen counts one file examined in source.
func (s *Scan) FileSeen(source string) {
	if s != nil {
		s.FilesSeen.WithLabelValues(source).Inc()
	}
}

// ParseMiss counts one unrecognised file name in source.
func (s *Scan) ParseMiss(source string) {
	if s != nil {
		s.ParseMisses.WithLabelValues(source).Inc()
	}
}

// Collision counts one key collision.
func (s *Scan) Collision() {
	if s != nil {
		s.Collisions.Inc()
	}
}

// ConstructionError counts one rejected record.
func (s *Scan) ConstructionError() {
	if s != nil {
		s.ConstructionErrors.Inc()
	}
}

// BuildDone records the size and duration of a finished build.
func (s *Scan) BuildDone(records int, elapsed time.Duration) {
	if s != nil {
		s.RecordsIndexed.Set(float64(records))
		s.BuildDuration.Observe(elapsed.Seconds())
	}
}
