// Package datasettest writes synthetic fundus datasets for tests: fundus
// images, contour annotations, overlays and clinical workbooks, all derived
// from a seed.
package datasettest

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mrsinham/fundusindex/internal/clinical"
	"github.com/mrsinham/fundusindex/internal/dataset"
	"github.com/mrsinham/fundusindex/internal/imaging/imagingtest"
	"github.com/mrsinham/fundusindex/internal/patient"
)

// MaxPatients bounds Options.Patients so ids fit the three-digit convention.
const MaxPatients = 999

// Options contains everything needed to generate a dataset.
type Options struct {
	Patients       int    // patients 1..Patients, both eyes each
	Seed           uint64 // 0 derives a seed from the output directory
	ContoursPerEye int    // contour files per eye, alternating cup and disc
	Overlays       bool   // write one overlay per eye
	Clinical       bool   // write both clinical workbooks
	ImageSize      int    // square image side in pixels, default 32

	EdgeCases EdgeCases
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Patients <= 0 || o.Patients > MaxPatients {
		return fmt.Errorf("number of patients must be 1-%d, got %d", MaxPatients, o.Patients)
	}
	if o.ContoursPerEye < 0 {
		return fmt.Errorf("contours per eye must be >= 0, got %d", o.ContoursPerEye)
	}
	if o.ImageSize < 0 {
		return fmt.Errorf("image size must be >= 0, got %d", o.ImageSize)
	}
	return o.EdgeCases.Validate()
}

// Expected is what an index built over the dataset should hold for one key.
type Expected struct {
	ImagePath    string
	ContourCount int
	HasOverlay   bool
	Age          string // clinical age, empty without clinical workbooks
}

// GeneratedFile describes one written file.
type GeneratedFile struct {
	Path string
	Kind patient.ArtifactKind // KindUnknown for stray files
	Key  patient.Key
}

// Manifest lists what Generate wrote.
type Manifest struct {
	Base       string
	Seed       uint64
	Files      []GeneratedFile
	Records    map[patient.Key]Expected
	StrayFiles int
	// DecoyOverlays counts images in the overlay directory that are not overlays.
	DecoyOverlays int
}

// Generate writes a synthetic dataset under base using the default layout.
func Generate(base string, opts Options) (*Manifest, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.ImageSize == 0 {
		opts.ImageSize = 32
	}

	seed := opts.Seed
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(base)) // hash.Write never returns an error
		seed = h.Sum64()
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	edges := &applicator{cfg: opts.EdgeCases, rng: rng}

	layout := dataset.DefaultLayout()
	m := &Manifest{Base: base, Seed: seed, Records: make(map[patient.Key]Expected)}
	clinicalRows := map[patient.Eye][][]string{}

	for id := 1; id <= opts.Patients; id++ {
		edge := edges.pick()
		age := strconv.Itoa(20 + rng.IntN(70))

		for _, eye := range []patient.Eye{patient.Right, patient.Left} {
			key := patient.Key{PatientID: fmt.Sprintf("%03d", id), Eye: eye}
			exp := Expected{}

			rel := filepath.FromSlash(fundusName(id, eye.String(), edge, 1+id%3))
			exp.ImagePath = filepath.Join(base, layout.FundusDir, rel)
			if err := imagingtest.WriteJPEG(exp.ImagePath, opts.ImageSize, opts.ImageSize); err != nil {
				return nil, fmt.Errorf("write fundus image %s: %w", key, err)
			}
			m.Files = append(m.Files, GeneratedFile{Path: exp.ImagePath, Kind: patient.KindImage, Key: key})

			for c := 0; c < opts.ContoursPerEye; c++ {
				structure := []string{"cup", "disc"}[c%2]
				name := fmt.Sprintf("RET%03d%s_%s_exp%d.txt", id, eye, structure, 1+c/2)
				path := filepath.Join(base, layout.ContoursDir, name)
				if err := writeContour(path, rng, opts.ImageSize); err != nil {
					return nil, fmt.Errorf("write contour %s: %w", name, err)
				}
				m.Files = append(m.Files, GeneratedFile{Path: path, Kind: patient.KindContour, Key: key})
				exp.ContourCount++
			}

			if opts.Overlays {
				path := filepath.Join(base, layout.OverlaysDir, overlayName(id, eye.String()))
				if err := imagingtest.WriteJPEG(path, opts.ImageSize, opts.ImageSize); err != nil {
					return nil, fmt.Errorf("write overlay %s: %w", key, err)
				}
				m.Files = append(m.Files, GeneratedFile{Path: path, Kind: patient.KindContourImage, Key: key})
				exp.HasOverlay = true

				if edge == DecoyOverlays {
					path := filepath.Join(base, layout.OverlaysDir, decoyOverlayName(id, eye.String()))
					if err := imagingtest.WriteJPEG(path, opts.ImageSize, opts.ImageSize); err != nil {
						return nil, fmt.Errorf("write decoy overlay %s: %w", key, err)
					}
					m.Files = append(m.Files, GeneratedFile{Path: path, Key: key})
					m.DecoyOverlays++
				}
			}

			if opts.Clinical {
				clinicalRows[eye] = append(clinicalRows[eye], clinicalRow(id, age, rng))
				exp.Age = age
			}
			m.Records[key] = exp
		}

		if edge == StrayFiles {
			path := filepath.Join(base, layout.FundusDir, fmt.Sprintf("scan_%04d.jpg", id))
			if err := imagingtest.WriteJPEG(path, opts.ImageSize, opts.ImageSize); err != nil {
				return nil, fmt.Errorf("write stray file: %w", err)
			}
			m.Files = append(m.Files, GeneratedFile{Path: path})
			m.StrayFiles++
		}
	}

	if opts.Clinical {
		copts := clinical.DefaultOptions()
		dir := filepath.Join(base, copts.Dir)
		if err := WriteWorkbook(filepath.Join(dir, copts.RightFile), clinicalSheet(clinicalRows[patient.Right])); err != nil {
			return nil, err
		}
		if err := WriteWorkbook(filepath.Join(dir, copts.LeftFile), clinicalSheet(clinicalRows[patient.Left])); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// writeContour writes a closed ring of points around the image centre.
func writeContour(path string, rng *rand.Rand, size int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	var sb strings.Builder
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size) / 6 * (1 + rng.Float64())
	const n = 16
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / n
		fmt.Fprintf(&sb, "%.2f %.2f\n", cx+r*math.Cos(a), cy+r*math.Sin(a))
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// clinicalRow returns a positional row; the id carries the "#" prefix and is not always padded.
func clinicalRow(id int, age string, rng *rand.Rand) []string {
	idCell := fmt.Sprintf("#%03d", id)
	if rng.IntN(4) == 0 {
		idCell = fmt.Sprintf("#%d", id)
	}
	return []string{
		idCell,
		age,
		strconv.Itoa(rng.IntN(2)),
		strconv.Itoa(rng.IntN(3)),
		fmt.Sprintf("%.2f", rng.Float64()*6-3),
		fmt.Sprintf("%.2f", rng.Float64()*6-3),
		fmt.Sprintf("%.2f", rng.Float64()*2),
		strconv.Itoa(rng.IntN(2)),
		strconv.Itoa(10 + rng.IntN(15)),
		strconv.Itoa(10 + rng.IntN(15)),
		strconv.Itoa(480 + rng.IntN(120)),
		fmt.Sprintf("%.2f", 21+rng.Float64()*5),
		fmt.Sprintf("%.2f", -rng.Float64()*10),
	}
}

func clinicalSheet(data [][]string) [][]string {
	rows := [][]string{
		{"Clinical data"},
		{"", "", "", "", "Refractive error"},
		clinical.Schema,
	}
	return append(rows, data...)
}

// WriteWorkbook saves rows to the first sheet of a new .xlsx file, creating parent directories.
func WriteWorkbook(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
