// Package dataset indexes a fundus dataset on disk: fundus images, expert
// contour annotations and rendered contour overlays, keyed by patient and eye.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrsinham/fundusindex/internal/filename"
	"github.com/mrsinham/fundusindex/internal/metrics"
	"github.com/mrsinham/fundusindex/internal/patient"
)

// ErrBasePathNotFound is returned by Build when the base path is missing or not a directory.
var ErrBasePathNotFound = errors.New("dataset base path not found")

// Stats summarizes one build.
type Stats struct {
	ImagesSeen         int
	ParseMisses        int
	Collisions         int
	ConstructionErrors int
	ContourFiles       int
	OverlayFiles       int
	Records            int
	Elapsed            time.Duration
}

// Index holds the records of one dataset. It is not modified after Build returns.
type Index struct {
	basePath string
	layout   Layout
	records  map[patient.Key]patient.Record
	buildID  string
	stats    Stats
	log      zerolog.Logger
}

// builder carries the state of a single Build call.
type builder struct {
	base    string
	layout  Layout
	log     zerolog.Logger
	metrics *metrics.Scan
	stats   Stats
}

// Build scans basePath and assembles one record per fundus image.
// Missing sub-trees are logged and yield fewer records; only a missing base path is an error.
func Build(basePath string, opts Options) (*Index, error) {
	start := time.Now()

	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBasePathNotFound, basePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBasePathNotFound, basePath)
	}

	buildID := uuid.NewString()
	b := &builder{
		base:    basePath,
		layout:  opts.Layout,
		log:     opts.Logger.With().Str("component", "dataset").Str("build_id", buildID).Logger(),
		metrics: opts.Metrics,
	}

	contours := b.bucket(b.layout.ContoursDir, b.layout.ContourExtensions, filename.Parse, patient.KindContour, metrics.SourceContours)
	overlays := b.bucket(b.layout.OverlaysDir, b.layout.ImageExtensions, filename.ParseOverlay, patient.KindContourImage, metrics.SourceOverlays)
	records := b.scanFundus(contours, overlays)

	b.stats.Records = len(records)
	b.stats.Elapsed = time.Since(start)
	b.metrics.BuildDone(len(records), b.stats.Elapsed)

	b.log.Info().
		Str("base_path", basePath).
		Int("records", b.stats.Records).
		Int("images_seen", b.stats.ImagesSeen).
		Int("parse_misses", b.stats.ParseMisses).
		Int("collisions", b.stats.Collisions).
		Dur("elapsed", b.stats.Elapsed).
		Msg("dataset indexed")

	return &Index{
		basePath: basePath,
		layout:   b.layout,
		records:  records,
		buildID:  buildID,
		stats:    b.stats,
		log:      b.log,
	}, nil
}

// scanFundus walks the fundus tree in lexical order and builds one record per parsed image.
func (b *builder) scanFundus(contours, overlays map[patient.Key][]string) map[patient.Key]patient.Record {
	records := make(map[patient.Key]patient.Record)
	root := filepath.Join(b.base, b.layout.FundusDir)

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		b.log.Warn().Str("dir", root).Msg("fundus directory not found")
		return records
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			b.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			return nil
		}
		if d.IsDir() || !hasExtension(path, b.layout.ImageExtensions) {
			return nil
		}

		b.stats.ImagesSeen++
		b.metrics.FileSeen(metrics.SourceFundus)

		// Only the exact RET<id><eye> stem names a fundus photograph.
		res := filename.Parse(path)
		if !res.OK() || res.Kind != patient.KindImage {
			b.stats.ParseMisses++
			b.metrics.ParseMiss(metrics.SourceFundus)
			b.log.Debug().Str("path", path).Stringer("kind", res.Kind).Msg("unrecognised fundus file name")
			return nil
		}

		key := res.Key()
		rec, err := patient.NewRecord(res.PatientID, res.Eye, path, contours[key], overlays[key])
		if err != nil {
			b.stats.ConstructionErrors++
			b.metrics.ConstructionError()
			b.log.Error().Err(err).Str("path", path).Msg("cannot build patient record")
			return nil
		}

		if prev, ok := records[key]; ok {
			b.stats.Collisions++
			b.metrics.Collision()
			b.log.Warn().
				Str("key", key.String()).
				Str("previous", prev.ImagePath()).
				Str("current", path).
				Msg("duplicate patient and eye, keeping the later image")
		}
		records[key] = rec
		return nil
	})

	return records
}

// bucket lists dir once and groups the files parse accepts as the wanted kind by key, in lexical order.
func (b *builder) bucket(dir string, exts []string, parse func(string) filename.Result, kind patient.ArtifactKind, source string) map[patient.Key][]string {
	buckets := make(map[patient.Key][]string)
	if dir == "" {
		return buckets
	}
	root := filepath.Join(b.base, dir)

	entries, err := os.ReadDir(root)
	if err != nil {
		b.log.Warn().Str("dir", root).Str("source", source).Msg("annotation directory not found")
		return buckets
	}

	// os.ReadDir sorts by file name.
	for _, e := range entries {
		if e.IsDir() || !hasExtension(e.Name(), exts) {
			continue
		}
		b.metrics.FileSeen(source)

		res := parse(e.Name())
		if !res.OK() {
			b.stats.ParseMisses++
			b.metrics.ParseMiss(source)
			b.log.Debug().Str("file", e.Name()).Str("source", source).Msg("unrecognised annotation file name")
			continue
		}
		if res.Kind != kind {
			b.log.Debug().
				Str("file", e.Name()).
				Stringer("kind", res.Kind).
				Stringer("want", kind).
				Msg("ignoring file of another kind")
			continue
		}

		key := res.Key()
		buckets[key] = append(buckets[key], filepath.Join(root, e.Name()))
		if kind == patient.KindContour {
			b.stats.ContourFiles++
		} else {
			b.stats.OverlayFiles++
		}
	}
	return buckets
}

// BasePath returns the scanned directory.
func (ix *Index) BasePath() string { return ix.basePath }

// BuildID identifies the build in logs.
func (ix *Index) BuildID() string { return ix.buildID }

// Stats returns the build statistics.
func (ix *Index) Stats() Stats { return ix.stats }

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.records) }

// Get returns the record of a patient eye. patientID is normalized first, so "2" finds "002".
func (ix *Index) Get(patientID string, eye patient.Eye) (patient.Record, bool) {
	rec, ok := ix.records[patient.Key{PatientID: patient.NormalizeID(patientID), Eye: eye}]
	return rec, ok
}

// Keys returns every key, ordered by patient id then OD before OS.
func (ix *Index) Keys() []patient.Key {
	keys := make([]patient.Key, 0, len(ix.records))
	for k := range ix.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// List returns a summary of every record in key order.
func (ix *Index) List() []patient.Summary {
	keys := ix.Keys()
	out := make([]patient.Summary, 0, len(keys))
	for _, k := range keys {
		out = append(out, ix.records[k].Summarize())
	}
	return out
}

// Patients returns the distinct patient ids, sorted.
func (ix *Index) Patients() []string {
	var ids []string
	for _, k := range ix.Keys() {
		if len(ids) == 0 || ids[len(ids)-1] != k.PatientID {
			ids = append(ids, k.PatientID)
		}
	}
	return ids
}
