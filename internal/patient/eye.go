// Package patient models the per-eye patient records assembled from a fundus dataset.
package patient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEye is returned when an eye token is neither OD nor OS.
var ErrInvalidEye = errors.New("invalid eye")

// Eye represents the laterality of a record
type Eye int

const (
	// EyeUnknown is the zero value and never valid on a Record.
	EyeUnknown Eye = iota
	// Right is the right eye (oculus dexter, "OD").
	Right
	// Left is the left eye (oculus sinister, "OS").
	Left
)

// String returns the ophthalmologic code of the eye
func (e Eye) String() string {
	switch e {
	case Right:
		return "OD"
	case Left:
		return "OS"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether e is Right or Left.
func (e Eye) Valid() bool {
	return e == Right || e == Left
}

// ParseEye parses "OD"/"OS" (or "RIGHT"/"LEFT") into an Eye, case-insensitively.
func ParseEye(s string) (Eye, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OD", "RIGHT":
		return Right, nil
	case "OS", "LEFT":
		return Left, nil
	default:
		return EyeUnknown, fmt.Errorf("%w: %q (valid: OD, OS)", ErrInvalidEye, s)
	}
}

// ArtifactKind identifies which dataset artifact a filename refers to.
type ArtifactKind int

const (
	KindUnknown ArtifactKind = iota
	KindImage
	KindContour
	KindContourImage
)

// String returns the lowercase name of the kind
func (k ArtifactKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindContour:
		return "contour"
	case KindContourImage:
		return "contour_image"
	default:
		return "unknown"
	}
}
