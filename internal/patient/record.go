package patient

import (
	"errors"
	"fmt"
	"strings"
)

// IDWidth is the zero-padded width of a normalized patient id.
const IDWidth = 3

// Key identifies a record in an index.
type Key struct {
	PatientID string
	Eye       Eye
}

// String renders the key as "002_OD".
func (k Key) String() string {
	return k.PatientID + "_" + k.Eye.String()
}

// Less orders keys by patient id, then OD before OS.
func (k Key) Less(o Key) bool {
	if k.PatientID != o.PatientID {
		return k.PatientID < o.PatientID
	}
	return k.Eye < o.Eye
}

// NormalizeID trims s and left-pads it with zeros to IDWidth.
// Longer ids are returned unchanged.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= IDWidth {
		return s
	}
	return strings.Repeat("0", IDWidth-len(s)) + s
}

// Record joins the files of one eye of one patient. It is immutable once built.
type Record struct {
	key               Key
	imagePath         string
	contourPaths      []string
	contourImagePaths []string
}

// NewRecord validates its inputs and builds a Record.
// Nil path slices become empty slices.
func NewRecord(patientID string, eye Eye, imagePath string, contourPaths, contourImagePaths []string) (Record, error) {
	if !eye.Valid() {
		return Record{}, fmt.Errorf("new record %s: %w: %d", patientID, ErrInvalidEye, int(eye))
	}
	if strings.TrimSpace(patientID) == "" {
		return Record{}, errors.New("new record: empty patient id")
	}
	if imagePath == "" {
		return Record{}, fmt.Errorf("new record %s%s: empty image path", patientID, eye)
	}
	return Record{
		key:               Key{PatientID: NormalizeID(patientID), Eye: eye},
		imagePath:         imagePath,
		contourPaths:      cloneStrings(contourPaths),
		contourImagePaths: cloneStrings(contourImagePaths),
	}, nil
}

func (r Record) Key() Key          { return r.key }
func (r Record) PatientID() string { return r.key.PatientID }
func (r Record) Eye() Eye          { return r.key.Eye }
func (r Record) ImagePath() string { return r.imagePath }

// ContourPaths returns a copy of the raw contour annotation paths.
func (r Record) ContourPaths() []string { return cloneStrings(r.contourPaths) }

// ContourImagePaths returns a copy of the rendered overlay paths.
func (r Record) ContourImagePaths() []string { return cloneStrings(r.contourImagePaths) }

// Summary is the listing view of a Record.
type Summary struct {
	PatientID       string `json:"patient_id" yaml:"patient_id"`
	Eye             string `json:"eye" yaml:"eye"`
	ImagePath       string `json:"image_path" yaml:"image_path"`
	ContourCount    int    `json:"contour_count" yaml:"contour_count"`
	HasContourImage bool   `json:"has_contour_image" yaml:"has_contour_image"`
}

// Summarize builds the listing view of r.
func (r Record) Summarize() Summary {
	return Summary{
		PatientID:       r.key.PatientID,
		Eye:             r.key.Eye.String(),
		ImagePath:       r.imagePath,
		ContourCount:    len(r.contourPaths),
		HasContourImage: len(r.contourImagePaths) > 0,
	}
}

// Enriched is a Record joined with its clinical attributes.
// Clinical is nil when no clinical row matched.
type Enriched struct {
	Record   Record
	Clinical map[string]string
}

// HasClinical reports whether a clinical row was joined.
func (e Enriched) HasClinical() bool {
	return e.Clinical != nil
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
