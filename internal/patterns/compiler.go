// Package patterns provides the grok-style pattern compiler and the text
// normaliser shared by the GDS parsers.
// This file contains the grok-style pattern compiler.

package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// Format represents a row format with named capture groups.
type Format struct {
	Name     string         // Format name for identification
	Pattern  string         // Pattern with {PLACEHOLDER} syntax
	Compiled *regexp.Regexp // Compiled regex (populated by Compile)
	Fields   []string       // Field names in capture order (for documentation)
}

// Compiler manages pattern compilation and matching for a set of formats.
type Compiler struct {
	basePatterns map[string]string
	formats      []Format
}

// NewCompiler creates a new pattern compiler with the given formats.
// It merges the provided base patterns with the global BasePatterns,
// allowing local patterns to override global ones.
func NewCompiler(formats []Format, localPatterns map[string]string) *Compiler {
	c := &Compiler{
		basePatterns: make(map[string]string),
		formats:      make([]Format, len(formats)),
	}

	for k, v := range BasePatterns {
		c.basePatterns[k] = v
	}
	for k, v := range localPatterns {
		c.basePatterns[k] = v
	}

	copy(c.formats, formats)

	return c
}

// Compile expands all {PLACEHOLDER} references and compiles regexes.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		expanded := c.expand(c.formats[i].Pattern)
		re, err := regexp.Compile(expanded)
		if err != nil {
			return fmt.Errorf("compile format %s: %w", c.formats[i].Name, err)
		}
		c.formats[i].Compiled = re
	}
	return nil
}

// expand replaces {PLACEHOLDER} with actual regex patterns.
func (c *Compiler) expand(pattern string) string {
	result := pattern
	for name, regex := range c.basePatterns {
		placeholder := "{" + name + "}"
		result = strings.ReplaceAll(result, placeholder, regex)
	}
	return result
}

// Expanded returns the expanded regex of a format, or "" if the format is unknown.
func (c *Compiler) Expanded(formatName string) string {
	for _, f := range c.formats {
		if f.Name == formatName {
			return c.expand(f.Pattern)
		}
	}
	return ""
}

// Match represents a successful pattern match with extracted fields.
type Match struct {
	FormatName string            // Name of the matched format
	Captures   map[string]string // Named capture group values
	Text       string            // Whole matched text
	Start, End int               // Byte offsets of the match in the input
}

func newMatch(format Format, text string, loc []int) *Match {
	m := &Match{
		FormatName: format.Name,
		Captures:   make(map[string]string),
		Text:       text[loc[0]:loc[1]],
		Start:      loc[0],
		End:        loc[1],
	}
	for i, name := range format.Compiled.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		if loc[2*i] >= 0 {
			m.Captures[name] = text[loc[2*i]:loc[2*i+1]]
		} else {
			m.Captures[name] = ""
		}
	}
	return m
}

// Parse attempts to match text against all compiled formats in order.
// Returns the first successful match, or nil if no format matches.
func (c *Compiler) Parse(text string) *Match {
	for _, format := range c.formats {
		if format.Compiled == nil {
			continue
		}
		if loc := format.Compiled.FindStringSubmatchIndex(text); loc != nil {
			return newMatch(format, text, loc)
		}
	}
	return nil
}

// Match attempts to match text against one named format.
func (c *Compiler) Match(formatName, text string) *Match {
	for _, format := range c.formats {
		if format.Name != formatName || format.Compiled == nil {
			continue
		}
		if loc := format.Compiled.FindStringSubmatchIndex(text); loc != nil {
			return newMatch(format, text, loc)
		}
		return nil
	}
	return nil
}

// FindAllMatches finds all non-overlapping occurrences of a format in text,
// in left-to-right order.
func (c *Compiler) FindAllMatches(text string, formatName string) []*Match {
	var results []*Match

	for _, format := range c.formats {
		if format.Name != formatName || format.Compiled == nil {
			continue
		}
		for _, loc := range format.Compiled.FindAllStringSubmatchIndex(text, -1) {
			results = append(results, newMatch(format, text, loc))
		}
		break
	}

	return results
}

// GetCapture is a helper to safely get a capture value with a default.
func (m *Match) GetCapture(name string, defaultVal string) string {
	if m == nil {
		return defaultVal
	}
	if val, ok := m.Captures[name]; ok && val != "" {
		return val
	}
	return defaultVal
}

// FormatTrace contains debug information about a format match attempt.
type FormatTrace struct {
	Name     string            // Format name
	Matched  bool              // Whether the pattern matched
	Pattern  string            // The expanded regex pattern
	Captures map[string]string // Captured groups (if matched)
}

// ParseTrace contains complete trace information for a parse attempt.
type ParseTrace struct {
	Formats []FormatTrace // All format match attempts
	Match   *Match        // The first successful match (if any)
}

// ParseWithTrace attempts to match text against every format and returns
// detailed trace information. This is useful for debugging why a row was dropped.
func (c *Compiler) ParseWithTrace(text string) *ParseTrace {
	trace := &ParseTrace{
		Formats: make([]FormatTrace, 0, len(c.formats)),
	}

	for _, format := range c.formats {
		ft := FormatTrace{
			Name:    format.Name,
			Pattern: c.expand(format.Pattern),
		}

		if format.Compiled == nil {
			trace.Formats = append(trace.Formats, ft)
			continue
		}

		loc := format.Compiled.FindStringSubmatchIndex(text)
		if loc == nil {
			trace.Formats = append(trace.Formats, ft)
			continue
		}

		m := newMatch(format, text, loc)
		ft.Matched = true
		ft.Captures = m.Captures
		trace.Formats = append(trace.Formats, ft)

		if trace.Match == nil {
			trace.Match = m
		}
	}

	return trace
}
