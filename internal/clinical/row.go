package clinical

import (
	"strconv"
	"strings"
)

// Row is one clinical record keyed by canonical column name.
type Row map[string]string

// Value returns the cell of a column, accepting any alias known to the column registry.
func (r Row) Value(column string) (string, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	v, ok := r[canonicalColumn(column)]
	return v, ok
}

// Float parses a numeric cell. Decimal commas are accepted.
func (r Row) Float(column string) (float64, bool) {
	v, ok := r.Value(column)
	if !ok {
		return 0, false
	}
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Int parses an integral cell; "63.0" is accepted as 63.
func (r Row) Int(column string) (int, bool) {
	f, ok := r.Float(column)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// Clone returns a copy of r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
