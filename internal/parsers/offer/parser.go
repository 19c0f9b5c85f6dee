// Package offer parses Offer codes: a quoted itinerary with a basic part
// and an optional detail part after a VI*« separator line.
package offer

import (
	"strings"

	"gds_parser/internal/diag"
	"gds_parser/internal/gds"
	"gds_parser/internal/patterns"
	"gds_parser/internal/registry"
	"gds_parser/internal/rows"
)

// Record is the extracted content of an offer. Second is nil when the text
// has no detail part.
type Record struct {
	Code   string                 `json:"code"`
	Basic  []rows.FlightRow       `json:"basic"`
	Second []rows.FlightDetailRow `json:"second,omitempty"`
}

// Result represents a parsed offer.
type Result struct {
	MsgID       int64      `json:"message_id,omitempty"`
	Record      Record     `json:"record"`
	Delimiter   int        `json:"delimiter"` // Line index of the separator, -1 if none was used.
	BasicStats  rows.Stats `json:"basic_stats"`
	SecondStats rows.Stats `json:"second_stats"`
}

func (r *Result) Type() string     { return string(gds.DialectOffer) }
func (r *Result) MessageID() int64 { return r.MsgID }

// Segments splits normalised offer lines at the first separator line. It
// returns the basic lines, the detail lines and the separator index. When
// there is no separator or either side is empty, every line is basic and
// the index is -1.
func Segments(lines []string) (basic, second []string, delimiter int) {
	for i, line := range lines {
		if !rows.IsDelimiter(line) {
			continue
		}
		basic, second = lines[:i], lines[i+1:]
		if nonBlank(basic) && nonBlank(second) {
			return basic, second, i
		}
		break
	}
	return lines, nil, -1
}

func nonBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// Parse extracts the flights of an offer. It fails with a *diag.FatalError
// when no basic flight row is recognised.
func Parse(text string) (*Result, error) {
	lines := patterns.SplitRows(patterns.NormalizeStrict(text))
	basicLines, secondLines, k := Segments(lines)

	result := &Result{
		Record:    Record{Code: text},
		Delimiter: k,
	}
	result.Record.Basic, result.BasicStats = rows.FlightsFromLines(basicLines)
	if result.BasicStats.Matched == 0 {
		return nil, diag.Fatal(string(gds.DialectOffer))
	}

	if secondLines != nil {
		second, st := rows.DetailsFromLines(secondLines)
		result.SecondStats = st
		// An empty slice still marks that a detail part was present.
		if second == nil {
			second = []rows.FlightDetailRow{}
		}
		result.Record.Second = second
	}

	return result, nil
}

// Parser registers offer parsing with the dispatch registry.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string         { return "offer" }
func (p *Parser) Dialect() gds.Dialect { return gds.DialectOffer }
func (p *Parser) Priority() int        { return 100 }

// QuickCheck accepts any non-blank text. An offer without flights must
// reach Parse so that it fails instead of being skipped.
func (p *Parser) QuickCheck(text string) bool {
	return strings.TrimSpace(text) != ""
}

func (p *Parser) Parse(msg *gds.Message) (registry.Result, error) {
	result, err := Parse(msg.Text)
	if err != nil {
		return nil, err
	}
	result.MsgID = int64(msg.ID)
	return result, nil
}

// ParseWithTrace implements registry.Traceable.
func (p *Parser) ParseWithTrace(msg *gds.Message) *registry.TraceResult {
	trace := &registry.TraceResult{
		ParserName: p.Name(),
		Dialect:    gds.DialectOffer,
	}

	quickCheckPassed := p.QuickCheck(msg.Text)
	trace.QuickCheck = &registry.QuickCheck{Passed: quickCheckPassed}
	if !quickCheckPassed {
		trace.QuickCheck.Reason = "empty text"
		return trace
	}

	lines := patterns.SplitRows(patterns.NormalizeStrict(msg.Text))
	basicLines, secondLines, _ := Segments(lines)

	trace.Segments = append(trace.Segments, traceLines("basic", rows.FormatFlight, basicLines, ""))
	if secondLines != nil {
		trace.Segments = append(trace.Segments, traceLines("second", rows.FormatDetail, secondLines, " "))
	}

	if _, err := Parse(msg.Text); err != nil {
		trace.Error = err.Error()
		return trace
	}
	trace.Matched = true
	return trace
}

func traceLines(name, format string, lines []string, suffix string) registry.SegmentTrace {
	seg := registry.SegmentTrace{
		Name:    name,
		Format:  format,
		Pattern: rows.Pattern(format),
	}
	for _, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		rt := registry.RowTrace{Text: text}
		if m := rows.MatchFormat(format, text+suffix); m != nil {
			rt.Matched = true
			rt.Captures = m.Captures
		}
		seg.Rows = append(seg.Rows, rt)
	}
	return seg
}
