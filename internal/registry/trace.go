// Package registry provides tracing interfaces for parser debugging.
package registry

import "gds_parser/internal/gds"

// TraceResult contains trace information from a parser's attempt to parse a message.
type TraceResult struct {
	ParserName string         // Name of the parser.
	Dialect    gds.Dialect    // Dialect the message was parsed as.
	QuickCheck *QuickCheck    // QuickCheck result (nil if not applicable).
	Segments   []SegmentTrace // One entry per segment or scan.
	Matched    bool           // Whether the parser produced a result.
	Error      string         // Fatal error message, if any.
}

// QuickCheck contains the result of a parser's quick check.
type QuickCheck struct {
	Passed bool   // Whether the quick check passed.
	Reason string // Optional reason for the result.
}

// SegmentTrace shows how the rows of one segment or scan were matched.
type SegmentTrace struct {
	Name    string     // Segment name, e.g. "basic" or "passengers".
	Format  string     // Row format applied.
	Pattern string     // The expanded regex pattern.
	Rows    []RowTrace // Candidate rows in source order.
}

// Matched returns the number of rows that matched.
func (s SegmentTrace) Matched() int {
	n := 0
	for _, r := range s.Rows {
		if r.Matched {
			n++
		}
	}
	return n
}

// RowTrace contains debug information about one candidate row.
type RowTrace struct {
	Text     string            // Row text as matched.
	Matched  bool              // Whether the row format matched.
	Captures map[string]string // Captured groups (if matched).
}

// Traceable is implemented by parsers that support debug tracing.
// This allows the explain command to show why a row was kept or dropped.
type Traceable interface {
	// ParseWithTrace attempts to parse the message and returns detailed trace information.
	ParseWithTrace(msg *gds.Message) *TraceResult
}
