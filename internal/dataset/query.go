package dataset

import (
	"os"

	"github.com/mrsinham/fundusindex/internal/clinical"
	"github.com/mrsinham/fundusindex/internal/contour"
	"github.com/mrsinham/fundusindex/internal/imaging"
	"github.com/mrsinham/fundusindex/internal/patient"
	"github.com/mrsinham/fundusindex/internal/util"
)

// Info describes the image of a record without decoding its pixels.
type Info struct {
	Width           int    `json:"width" yaml:"width"`
	Height          int    `json:"height" yaml:"height"`
	Mode            string `json:"mode" yaml:"mode"`
	Format          string `json:"format" yaml:"format"`
	FileSize        int64  `json:"file_size" yaml:"file_size"`
	HumanSize       string `json:"human_size" yaml:"human_size"`
	ContourFiles    int    `json:"contour_files" yaml:"contour_files"`
	HasContourImage bool   `json:"has_contour_image" yaml:"has_contour_image"`
}

// ClinicalSource looks clinical rows up by patient id and eye.
// *clinical.Tables implements it.
type ClinicalSource interface {
	Get(patientID string, eye patient.Eye) (clinical.Row, bool)
}

// LoadImage decodes the fundus image of a patient eye.
// Decode failures are logged and reported as absent.
func (ix *Index) LoadImage(patientID string, eye patient.Eye) (imaging.Decoded, bool) {
	rec, ok := ix.Get(patientID, eye)
	if !ok {
		return imaging.Decoded{}, false
	}
	d, err := imaging.DecodeFile(rec.ImagePath(), ix.layout.MaxImageBytes)
	if err != nil {
		ix.log.Error().Err(err).Str("key", rec.Key().String()).Msg("cannot load fundus image")
		return imaging.Decoded{}, false
	}
	return d, true
}

// ImageInfo reads the image header and file size of a patient eye.
func (ix *Index) ImageInfo(patientID string, eye patient.Eye) (Info, bool) {
	rec, ok := ix.Get(patientID, eye)
	if !ok {
		return Info{}, false
	}
	path := rec.ImagePath()

	st, err := os.Stat(path)
	if err != nil {
		ix.log.Error().Err(err).Str("key", rec.Key().String()).Msg("fundus image missing")
		return Info{}, false
	}
	h, err := imaging.DecodeConfigFile(path)
	if err != nil {
		ix.log.Error().Err(err).Str("key", rec.Key().String()).Msg("cannot read fundus image header")
		return Info{}, false
	}

	sum := rec.Summarize()
	return Info{
		Width:           h.Width,
		Height:          h.Height,
		Mode:            h.Mode,
		Format:          h.Format,
		FileSize:        st.Size(),
		HumanSize:       util.FormatSize(st.Size()),
		ContourFiles:    sum.ContourCount,
		HasContourImage: sum.HasContourImage,
	}, true
}

// Contours parses the contour annotations of a patient eye.
// Unreadable files are logged and skipped.
func (ix *Index) Contours(patientID string, eye patient.Eye) []contour.Contour {
	rec, ok := ix.Get(patientID, eye)
	if !ok {
		return nil
	}
	paths := rec.ContourPaths()
	out := make([]contour.Contour, 0, len(paths))
	for _, p := range paths {
		c, err := contour.Read(p)
		if err != nil {
			ix.log.Warn().Err(err).Str("key", rec.Key().String()).Msg("skipping contour file")
			continue
		}
		out = append(out, c)
	}
	return out
}

// Enrich joins the record of a patient eye with its clinical row, if any.
// A nil src or a missing row leaves Clinical nil.
func (ix *Index) Enrich(patientID string, eye patient.Eye, src ClinicalSource) (patient.Enriched, bool) {
	rec, ok := ix.Get(patientID, eye)
	if !ok {
		return patient.Enriched{}, false
	}
	e := patient.Enriched{Record: rec}
	if src == nil {
		return e, true
	}
	if row, found := src.Get(rec.PatientID(), eye); found {
		e.Clinical = map[string]string(row)
	}
	return e, true
}
