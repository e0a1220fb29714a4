// Package filename derives patient identity from dataset file names.
//
// Three naming conventions are recognised, tried in order:
//
//	RET002OD.jpg            fundus image   (whole stem)
//	RET002OD_cup_exp1.txt   contour        (stem prefix followed by "_")
//	Opht_cont_RET002OD.jpg  contour image  (token anywhere in the stem)
//
// Digit runs of up to 3 digits are zero-padded to 3, so RET2OD names patient 002.
// ParseOverlay is the stricter matcher for the overlay directory, where only
// the exact "Opht_cont_" form counts.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mrsinham/fundusindex/internal/patient"
)

// Result is the outcome of parsing one file name. The zero value means no match.
type Result struct {
	PatientID string
	Eye       patient.Eye
	Kind      patient.ArtifactKind
	// Suffix holds the text after the first "_" for contour files, e.g. "cup_exp1".
	Suffix string
}

// OK reports whether the name matched one of the known conventions.
func (r Result) OK() bool {
	return r.Kind != patient.KindUnknown && r.PatientID != "" && r.Eye.Valid()
}

// Key returns the index key of the parsed name.
func (r Result) Key() patient.Key {
	return patient.Key{PatientID: r.PatientID, Eye: r.Eye}
}

// rule pairs an artifact kind with the stem pattern recognising it.
// Submatches are id, eye and, for contours, the suffix.
type rule struct {
	kind    patient.ArtifactKind
	pattern *regexp.Regexp
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{kind: patient.KindImage, pattern: regexp.MustCompile(`^RET(\d{1,3})(OD|OS)$`)},
	{kind: patient.KindContour, pattern: regexp.MustCompile(`^RET(\d{1,3})(OD|OS)_(.*)$`)},
	{kind: patient.KindContourImage, pattern: regexp.MustCompile(`RET(\d{1,3})(OD|OS)`)},
}

// OverlayPrefix starts every rendered contour overlay name, e.g. "Opht_cont_RET002OD.jpg".
const OverlayPrefix = "Opht_cont_"

var overlayPattern = regexp.MustCompile(`^` + OverlayPrefix + `RET(\d{1,3})(OD|OS)$`)

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse classifies name, which may be a bare file name or a path.
// It never fails: unknown names yield the zero Result.
func Parse(name string) Result {
	if name == "" {
		return Result{}
	}
	stem := Stem(name)

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(stem)
		if m == nil {
			continue
		}
		eye, err := patient.ParseEye(m[2])
		if err != nil {
			return Result{}
		}
		res := Result{
			PatientID: patient.NormalizeID(m[1]),
			Eye:       eye,
			Kind:      r.kind,
		}
		if r.kind == patient.KindContour {
			res.Suffix = m[3]
		}
		return res
	}
	return Result{}
}

// ParseOverlay accepts only rendered overlay names, "Opht_cont_RET<id><eye>" plus an extension.
// Other names, including ones that merely contain a RET token, yield the zero Result.
func ParseOverlay(name string) Result {
	m := overlayPattern.FindStringSubmatch(Stem(name))
	if m == nil {
		return Result{}
	}
	eye, err := patient.ParseEye(m[2])
	if err != nil {
		return Result{}
	}
	return Result{PatientID: patient.NormalizeID(m[1]), Eye: eye, Kind: patient.KindContourImage}
}
