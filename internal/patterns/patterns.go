// Package patterns provides the grok-style pattern compiler and the text
// normaliser shared by the GDS parsers.
package patterns

import (
	"regexp"
	"strings"
)

var (
	multiSpaceRe   = regexp.MustCompile(` {2,}`)
	continuationRe = regexp.MustCompile(`\n[ \n]*(/\S)`)
	lineIndentRe   = regexp.MustCompile(`\n +`)
	multiNewlineRe = regexp.MustCompile(`\n{2,}`)
	leadingRe      = regexp.MustCompile(`^[\n, ]+`)
	rowSplitRe     = regexp.MustCompile(`[\n,]+`)
)

// lineEndReplacer folds CRLF and bare CR line endings into LF.
var lineEndReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize canonicalises whitespace in terminal text. Runs of spaces become
// one space and a soft-wrapped system-info token (a line starting, after
// optional indentation, with '/') is joined back onto the previous
// non-blank line, separated by a single space.
// Normalize is idempotent.
func Normalize(text string) string {
	text = lineEndReplacer.Replace(text)
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = continuationRe.ReplaceAllString(text, " ${1}")
	// Joining can leave a double space when the previous line had a trailing one.
	return multiSpaceRe.ReplaceAllString(text, " ")
}

// NormalizeStrict applies Normalize, then removes line indentation, blank
// lines and any leading separators at the start of the text.
// NormalizeStrict is idempotent.
func NormalizeStrict(text string) string {
	text = Normalize(text)
	text = lineIndentRe.ReplaceAllString(text, "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n")
	return leadingRe.ReplaceAllString(text, "")
}

// SplitRows splits terminal text into rows on newlines and commas.
// Empty rows produced by consecutive separators are not returned.
func SplitRows(text string) []string {
	parts := rowSplitRe.Split(text, -1)
	rows := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		rows = append(rows, p)
	}
	return rows
}
