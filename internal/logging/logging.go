// Package logging builds the zerolog loggers handed to the index components.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options controls logger construction.
type Options struct {
	Level  string // trace, debug, info, warn, error; empty means info
	Format string // json or console; empty means json
	App    string // value of the "app" field, omitted when empty
}

// ParseLevel parses a level name. The empty string is info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %q", s)
	}
	return lvl, nil
}

// ValidateFormat checks an output format name.
func ValidateFormat(s string) error {
	switch strings.ToLower(s) {
	case "", FormatJSON, FormatConsole:
		return nil
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, console)", s)
	}
}

// New builds a logger writing to w, or to stderr when w is nil.
func New(opts Options, w io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if err := ValidateFormat(opts.Format); err != nil {
		return zerolog.Nop(), err
	}
	if w == nil {
		w = os.Stderr
	}
	if strings.ToLower(opts.Format) == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	ctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if opts.App != "" {
		ctx = ctx.Str("app", opts.App)
	}
	return ctx.Logger(), nil
}
