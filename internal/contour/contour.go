// Package contour reads expert contour annotations stored as coordinate text files.
package contour

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mrsinham/fundusindex/internal/filename"
)

// Point is one contour vertex in image pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Tag describes what a contour file annotates, derived from its name suffix.
type Tag struct {
	Structure string // e.g. "cup" or "disc"
	Expert    string // e.g. "exp1"
}

// Contour is a parsed annotation file.
type Contour struct {
	Path   string
	Tag    Tag
	Points []Point
}

// ParseTag splits a contour suffix such as "cup_exp1" into structure and expert.
// A suffix without "_" is treated as a bare structure name.
func ParseTag(suffix string) Tag {
	suffix = strings.TrimSpace(suffix)
	structure, expert, _ := strings.Cut(suffix, "_")
	return Tag{Structure: strings.ToLower(structure), Expert: strings.ToLower(expert)}
}

// Parse reads whitespace or comma separated "x y" pairs, one per line.
// Blank lines are ignored; any other malformed line is an error.
func Parse(r io.Reader) ([]Point, error) {
	var points []Point
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 coordinates, got %d", lineNo, len(fields))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid x: %w", lineNo, err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid y: %w", lineNo, err)
		}
		points = append(points, Point{X: x, Y: y})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// Read parses the contour file at path and tags it from its file name.
func Read(path string) (Contour, error) {
	f, err := os.Open(path)
	if err != nil {
		return Contour{}, err
	}
	defer func() { _ = f.Close() }()

	points, err := Parse(f)
	if err != nil {
		return Contour{}, fmt.Errorf("read contour %s: %w", path, err)
	}
	return Contour{
		Path:   path,
		Tag:    ParseTag(filename.Parse(path).Suffix),
		Points: points,
	}, nil
}
