package datasettest

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// EdgeCaseType is a category of naming irregularity found in real datasets.
type EdgeCaseType string

const (
	UnpaddedIDs   EdgeCaseType = "unpadded-ids"   // RET2OD instead of RET002OD
	UpperCaseExt  EdgeCaseType = "upper-case-ext" // .JPG
	NestedDirs    EdgeCaseType = "nested-dirs"    // FundusImages/batch_1/...
	StrayFiles    EdgeCaseType = "stray-files"    // extra images matching no convention
	DecoyOverlays EdgeCaseType = "decoy-overlays" // non-overlay images carrying a RET token next to the overlays
)

// AllEdgeCaseTypes returns every edge case type.
func AllEdgeCaseTypes() []EdgeCaseType {
	return []EdgeCaseType{UnpaddedIDs, UpperCaseExt, NestedDirs, StrayFiles, DecoyOverlays}
}

// ParseEdgeCaseTypes parses comma-separated edge case types.
func ParseEdgeCaseTypes(input string) ([]EdgeCaseType, error) {
	if input == "" {
		return nil, nil
	}
	valid := make(map[EdgeCaseType]bool)
	for _, t := range AllEdgeCaseTypes() {
		valid[t] = true
	}
	var out []EdgeCaseType
	for _, p := range strings.Split(input, ",") {
		t := EdgeCaseType(strings.TrimSpace(p))
		if !valid[t] {
			return nil, fmt.Errorf("unknown edge case type %q, valid types: %v", t, AllEdgeCaseTypes())
		}
		out = append(out, t)
	}
	return out, nil
}

// EdgeCases selects which irregularities to apply and to what share of patients.
type EdgeCases struct {
	Percentage int // 0-100
	Types      []EdgeCaseType
}

// Validate checks the edge case settings.
func (c EdgeCases) Validate() error {
	if c.Percentage < 0 || c.Percentage > 100 {
		return fmt.Errorf("edge-cases percentage must be 0-100, got %d", c.Percentage)
	}
	if c.Percentage > 0 && len(c.Types) == 0 {
		return fmt.Errorf("edge-cases enabled but no types specified")
	}
	return nil
}

// HasType reports whether t is enabled.
func (c EdgeCases) HasType(t EdgeCaseType) bool {
	for _, ct := range c.Types {
		if ct == t {
			return true
		}
	}
	return false
}

// applicator decides per patient whether and how names get irregular.
type applicator struct {
	cfg EdgeCases
	rng *rand.Rand
}

func (a *applicator) shouldApply() bool {
	return a.cfg.Percentage > 0 && len(a.cfg.Types) > 0 && a.rng.IntN(100) < a.cfg.Percentage
}

// pick returns the edge case of this patient, or "" for none.
func (a *applicator) pick() EdgeCaseType {
	if !a.shouldApply() {
		return ""
	}
	return a.cfg.Types[a.rng.IntN(len(a.cfg.Types))]
}

// fundusName renders the fundus image name of one eye.
func fundusName(id int, eye string, edge EdgeCaseType, batch int) string {
	ext := ".jpg"
	if edge == UpperCaseExt {
		ext = ".JPG"
	}
	idPart := fmt.Sprintf("%03d", id)
	if edge == UnpaddedIDs {
		idPart = fmt.Sprintf("%d", id)
	}
	name := "RET" + idPart + eye + ext
	if edge == NestedDirs {
		return fmt.Sprintf("batch_%d/%s", batch, name)
	}
	return name
}

// overlayName renders the overlay name of one eye.
func overlayName(id int, eye string) string {
	return fmt.Sprintf("Opht_cont_RET%03d%s.jpg", id, eye)
}

// decoyOverlayName renders an image that sits among the overlays without being one.
func decoyOverlayName(id int, eye string) string {
	return fmt.Sprintf("notes_RET%03d%s_draft.jpg", id, eye)
}
