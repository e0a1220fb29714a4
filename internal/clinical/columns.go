package clinical

import (
	"fmt"
	"sort"
	"strings"
)

// ColumnGroup classifies a clinical column by the examination it comes from.
type ColumnGroup int

const (
	GroupIdentity ColumnGroup = iota
	GroupDemographic
	GroupRefraction
	GroupLens
	GroupTonometry
	GroupBiometry
	GroupVisualField
)

// String returns the name of the group.
func (g ColumnGroup) String() string {
	switch g {
	case GroupIdentity:
		return "Identity"
	case GroupDemographic:
		return "Demographic"
	case GroupRefraction:
		return "Refraction"
	case GroupLens:
		return "Lens"
	case GroupTonometry:
		return "Tonometry"
	case GroupBiometry:
		return "Biometry"
	case GroupVisualField:
		return "VisualField"
	default:
		return "Unknown"
	}
}

// Canonical column names of the clinical spreadsheets.
const (
	ColID          = "ID"
	ColAge         = "Age"
	ColGender      = "Gender"
	ColDiagnosis   = "Diagnosis"
	ColDioptre1    = "dioptre_1"
	ColDioptre2    = "dioptre_2"
	ColAstigmatism = "astigmatism"
	ColLensStatus  = "Phakic/Pseudophakic"
	ColPneumatic   = "Pneumatic"
	ColPerkins     = "Perkins"
	ColPachymetry  = "Pachymetry"
	ColAxialLength = "Axial_Length"
	ColVFMD        = "VF_MD"
)

// Schema is the positional column order of the spreadsheets.
var Schema = []string{
	ColID, ColAge, ColGender, ColDiagnosis, ColDioptre1, ColDioptre2, ColAstigmatism,
	ColLensStatus, ColPneumatic, ColPerkins, ColPachymetry, ColAxialLength, ColVFMD,
}

// ColumnInfo describes a known clinical column.
type ColumnInfo struct {
	Name  string
	Group ColumnGroup
}

// columnRegistry maps folded column names (see foldColumn) to their info.
var columnRegistry = map[string]ColumnInfo{
	"id":        {Name: ColID, Group: GroupIdentity},
	"patientid": {Name: ColID, Group: GroupIdentity},

	"age":       {Name: ColAge, Group: GroupDemographic},
	"gender":    {Name: ColGender, Group: GroupDemographic},
	"sex":       {Name: ColGender, Group: GroupDemographic},
	"diagnosis": {Name: ColDiagnosis, Group: GroupDemographic},

	"dioptre1":    {Name: ColDioptre1, Group: GroupRefraction},
	"dioptre2":    {Name: ColDioptre2, Group: GroupRefraction},
	"astigmatism": {Name: ColAstigmatism, Group: GroupRefraction},

	"phakicpseudophakic": {Name: ColLensStatus, Group: GroupLens},

	"pneumatic": {Name: ColPneumatic, Group: GroupTonometry},
	"perkins":   {Name: ColPerkins, Group: GroupTonometry},

	"pachymetry":  {Name: ColPachymetry, Group: GroupBiometry},
	"axiallength": {Name: ColAxialLength, Group: GroupBiometry},

	"vfmd": {Name: ColVFMD, Group: GroupVisualField},
}

// foldColumn lowercases a header and drops separators so that
// "Axial Length", "axial_length" and "AXIAL-LENGTH" compare equal.
func foldColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case ' ', '_', '-', '/', '.', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ColumnByName returns the ColumnInfo for a header name.
// If the column is unknown, the error suggests the closest known column.
func ColumnByName(name string) (ColumnInfo, error) {
	folded := foldColumn(name)
	if info, ok := columnRegistry[folded]; ok {
		return info, nil
	}

	if suggestion := closestColumn(folded); suggestion != "" {
		return ColumnInfo{}, fmt.Errorf("unknown column %q, did you mean %q?", name, suggestion)
	}
	return ColumnInfo{}, fmt.Errorf("unknown column %q", name)
}

// canonicalColumn returns the canonical name for a header, or the trimmed header if unknown.
func canonicalColumn(name string) string {
	if info, err := ColumnByName(name); err == nil {
		return info.Name
	}
	return strings.TrimSpace(name)
}

// closestColumn returns the nearest known column within an edit distance of 3.
func closestColumn(input string) string {
	const maxDistance = 3
	bestDistance := maxDistance + 1
	var bestMatch string

	for _, key := range sortedRegistryKeys() {
		distance := levenshteinDistance(input, key)
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = columnRegistry[key].Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

func sortedRegistryKeys() []string {
	keys := make([]string, 0, len(columnRegistry))
	for k := range columnRegistry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// levenshteinDistance is the minimum number of single-character edits
// turning a into b.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
	}
	for i := 0; i <= len(a); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}
