// Package clinical reads the per-eye clinical spreadsheets of a fundus dataset
// and looks rows up by patient id.
package clinical

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/mrsinham/fundusindex/internal/patient"
)

// ErrReadOnly is returned by Update: the spreadsheets are never written.
var ErrReadOnly = errors.New("clinical tables are read-only")

// DefaultHeaderRowOffset is the zero-based row holding the real header;
// the rows above it carry titles.
const DefaultHeaderRowOffset = 2

// ColumnMode selects how column names are assigned.
type ColumnMode string

const (
	// ModePositional names columns from Schema by position, ignoring the header text.
	ModePositional ColumnMode = "positional"
	// ModeHeader names columns from the header row.
	ModeHeader ColumnMode = "header"
)

// ParseColumnMode parses a column mode, case-insensitively.
func ParseColumnMode(s string) (ColumnMode, error) {
	switch ColumnMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePositional, "":
		return ModePositional, nil
	case ModeHeader:
		return ModeHeader, nil
	default:
		return "", fmt.Errorf("invalid column mode: %s (valid: positional, header)", s)
	}
}

// Options locates and shapes the clinical tables.
type Options struct {
	Dir             string // relative to the dataset base path
	RightFile       string // OD table
	LeftFile        string // OS table
	HeaderRowOffset int
	Mode            ColumnMode
}

// DefaultOptions returns the standard dataset layout.
func DefaultOptions() Options {
	return Options{
		Dir:             "ClinicalData",
		RightFile:       "patient_data_od.xlsx",
		LeftFile:        "patient_data_os.xlsx",
		HeaderRowOffset: DefaultHeaderRowOffset,
		Mode:            ModePositional,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.HeaderRowOffset < 0 {
		return fmt.Errorf("header row offset must be >= 0, got %d", o.HeaderRowOffset)
	}
	if _, err := ParseColumnMode(string(o.Mode)); err != nil {
		return err
	}
	return nil
}

// table is one eye's rows plus a first-wins index on the normalized id.
type table struct {
	source  string
	columns []string
	rows    []Row
	byKey   map[string]int
}

// Tables holds the OD and OS clinical tables. A nil table means the eye has no data.
type Tables struct {
	tables map[patient.Eye]*table
	log    zerolog.Logger
}

// NewTables returns empty tables that answer every query with not found.
func NewTables(logger zerolog.Logger) *Tables {
	return &Tables{
		tables: make(map[patient.Eye]*table),
		log:    logger.With().Str("component", "clinical").Logger(),
	}
}

// Load reads both tables below basePath. It never fails: a missing file leaves
// that eye empty, and an unreadable or malformed file is logged and also leaves it empty.
func Load(basePath string, opts Options, logger zerolog.Logger) *Tables {
	t := NewTables(logger)
	if err := opts.Validate(); err != nil {
		t.log.Error().Err(err).Msg("invalid clinical options, no clinical data loaded")
		return t
	}

	dir := filepath.Join(basePath, opts.Dir)
	files := []struct {
		eye  patient.Eye
		name string
	}{
		{patient.Right, opts.RightFile},
		{patient.Left, opts.LeftFile},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err != nil {
			t.log.Warn().Str("eye", f.eye.String()).Str("path", path).Msg("clinical table not found")
			continue
		}
		if err := t.LoadFile(f.eye, path, opts); err != nil {
			t.log.Error().Err(err).Str("eye", f.eye.String()).Str("path", path).Msg("clinical table unreadable")
		}
	}
	return t
}

// LoadFile reads the first sheet of an .xlsx workbook into the table of eye.
// On error the eye's previous table is cleared.
func (t *Tables) LoadFile(eye patient.Eye, path string, opts Options) error {
	delete(t.tables, eye)

	rows, err := readFirstSheet(path)
	if err != nil {
		return err
	}
	return t.LoadRows(eye, path, rows, opts)
}

// LoadRows installs raw sheet rows as the table of eye.
func (t *Tables) LoadRows(eye patient.Eye, source string, rows [][]string, opts Options) error {
	delete(t.tables, eye)
	if !eye.Valid() {
		return fmt.Errorf("load %s: %w", source, patient.ErrInvalidEye)
	}

	tbl, err := buildTable(source, rows, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", source, err)
	}
	for _, dup := range tbl.index() {
		t.log.Warn().Str("eye", eye.String()).Str("id", dup).Str("path", source).
			Msg("duplicate clinical id, first row wins")
	}

	t.tables[eye] = tbl

	var groups []string
	for g, cols := range t.ColumnGroups(eye) {
		if len(cols) > 0 {
			groups = append(groups, g.String())
		}
	}
	sort.Strings(groups)
	t.log.Info().Str("eye", eye.String()).Str("path", source).Int("patients", len(tbl.rows)).
		Strs("groups", groups).
		Msg("clinical table loaded")
	return nil
}

func readFirstSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// buildTable applies the header offset and column mode to raw rows.
func buildTable(source string, rows [][]string, opts Options) (*table, error) {
	if opts.HeaderRowOffset < 0 {
		return nil, fmt.Errorf("header row offset must be >= 0, got %d", opts.HeaderRowOffset)
	}
	if len(rows) <= opts.HeaderRowOffset {
		return nil, fmt.Errorf("missing header row %d (sheet has %d rows)", opts.HeaderRowOffset, len(rows))
	}

	header := rows[opts.HeaderRowOffset]
	data := rows[opts.HeaderRowOffset+1:]

	var columns []string
	switch opts.Mode {
	case ModeHeader:
		columns = headerColumns(header)
		if !containsString(columns, ColID) {
			return nil, fmt.Errorf("header row has no %s column: %v", ColID, header)
		}
	default:
		width := len(header)
		for _, r := range data {
			width = max(width, len(r))
		}
		if width != len(Schema) {
			return nil, fmt.Errorf("expected %d columns, found %d", len(Schema), width)
		}
		columns = Schema
	}

	tbl := &table{source: source, columns: columns, byKey: make(map[string]int)}
	for _, raw := range data {
		if isBlank(raw) {
			continue
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(raw) {
				row[col] = strings.TrimSpace(raw[i])
			} else {
				row[col] = ""
			}
		}
		tbl.rows = append(tbl.rows, row)
	}
	return tbl, nil
}

func headerColumns(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			columns[i] = fmt.Sprintf("column_%d", i+1)
			continue
		}
		columns[i] = canonicalColumn(h)
	}
	return columns
}

// index maps normalized ids to their first row and returns the ids seen more than once.
func (tbl *table) index() []string {
	var dups []string
	for i, row := range tbl.rows {
		key := NormalizeKey(row[ColID])
		if key == "" {
			continue
		}
		if _, seen := tbl.byKey[key]; seen {
			dups = append(dups, key)
			continue
		}
		tbl.byKey[key] = i
	}
	return dups
}

// NormalizeKey turns "2", "002", " #002 " or "#2" into "#002".
// It returns "" for an empty id.
func NormalizeKey(id string) string {
	s := strings.ToUpper(strings.TrimSpace(id))
	s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
	if s == "" {
		return ""
	}
	return "#" + patient.NormalizeID(s)
}

// Get returns a copy of the row for patientID in the table of eye.
// When several rows share the id, the first one in file order is returned.
// A nil *Tables finds nothing.
func (t *Tables) Get(patientID string, eye patient.Eye) (Row, bool) {
	if t == nil {
		return nil, false
	}
	tbl := t.tables[eye]
	if tbl == nil {
		t.log.Debug().Str("eye", eye.String()).Msg("no clinical table loaded")
		return nil, false
	}

	key := NormalizeKey(patientID)
	i, ok := tbl.byKey[key]
	if !ok {
		t.log.Debug().Str("eye", eye.String()).Str("id", key).Msg("clinical row not found")
		return nil, false
	}
	return tbl.rows[i].Clone(), true
}

// Loaded reports whether a table is available for eye.
func (t *Tables) Loaded(eye patient.Eye) bool {
	return t != nil && t.tables[eye] != nil
}

// Len returns the number of rows loaded for eye.
func (t *Tables) Len(eye patient.Eye) int {
	if t == nil {
		return 0
	}
	if tbl := t.tables[eye]; tbl != nil {
		return len(tbl.rows)
	}
	return 0
}

// Columns returns the column names of the table for eye.
func (t *Tables) Columns(eye patient.Eye) []string {
	if t == nil {
		return nil
	}
	tbl := t.tables[eye]
	if tbl == nil {
		return nil
	}
	out := make([]string, len(tbl.columns))
	copy(out, tbl.columns)
	return out
}

// ColumnGroups returns the known columns of the table for eye, grouped by examination,
// in table order. Columns missing from the registry are left out.
func (t *Tables) ColumnGroups(eye patient.Eye) map[ColumnGroup][]string {
	out := make(map[ColumnGroup][]string)
	for _, col := range t.Columns(eye) {
		if info, err := ColumnByName(col); err == nil {
			out[info.Group] = append(out[info.Group], info.Name)
		}
	}
	return out
}

// Update never writes: the source spreadsheets are read-only. The request is logged
// and ErrReadOnly returned.
func (t *Tables) Update(patientID string, eye patient.Eye, values map[string]string) error {
	if t == nil {
		return ErrReadOnly
	}
	t.log.Warn().Str("eye", eye.String()).Str("id", NormalizeKey(patientID)).Int("fields", len(values)).
		Msg("clinical update ignored, tables are read-only")
	return ErrReadOnly
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
