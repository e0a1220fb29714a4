package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrsinham/fundusindex/internal/metrics"
)

// Layout names the dataset sub-trees, relative to the base path.
type Layout struct {
	FundusDir   string
	ContoursDir string
	OverlaysDir string

	// ImageExtensions filters fundus images and overlays; ContourExtensions filters contours.
	// Matching is case-insensitive and includes the leading dot.
	ImageExtensions   []string
	ContourExtensions []string

	// MaxImageBytes refuses larger files in LoadImage. Zero means unlimited.
	MaxImageBytes int64
}

// DefaultLayout returns the standard dataset layout.
func DefaultLayout() Layout {
	return Layout{
		FundusDir:         "FundusImages",
		ContoursDir:       filepath.Join("ExpertsSegmentations", "Contours"),
		OverlaysDir:       filepath.Join("ExpertsSegmentations", "ImagesWithContours"),
		ImageExtensions:   []string{".jpg", ".jpeg", ".png"},
		ContourExtensions: []string{".txt"},
	}
}

// Validate checks the layout.
func (l Layout) Validate() error {
	if l.FundusDir == "" {
		return fmt.Errorf("fundus directory must be set")
	}
	if len(l.ImageExtensions) == 0 {
		return fmt.Errorf("at least one image extension is required")
	}
	for _, ext := range append(append([]string{}, l.ImageExtensions...), l.ContourExtensions...) {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	if l.MaxImageBytes < 0 {
		return fmt.Errorf("max image bytes must be >= 0, got %d", l.MaxImageBytes)
	}
	return nil
}

// Options configures Build.
type Options struct {
	Layout  Layout
	Logger  zerolog.Logger
	Metrics *metrics.Scan // nil disables metrics
}

// DefaultOptions returns the default layout with logging and metrics disabled.
func DefaultOptions() Options {
	return Options{
		Layout: DefaultLayout(),
		Logger: zerolog.Nop(),
	}
}

func hasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
