// Package registry provides a parser registry for dispatching reservation
// texts to the parser of their dialect.
package registry

import (
	"errors"
	"sort"
	"sync"

	"gds_parser/internal/gds"
)

// ErrNoParser is returned when no registered parser accepts a message.
var ErrNoParser = errors.New("no parser accepted the message")

// Result is the common interface for all parse results.
type Result interface {
	Type() string     // "offer" or "sale"
	MessageID() int64 // The original message ID
}

// Parser is implemented by each dialect parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Dialect returns the dialect this parser handles.
	Dialect() gds.Dialect

	// QuickCheck performs a fast string check before expensive regex.
	// Returns true if the message MIGHT be parseable (false = definitely skip).
	QuickCheck(text string) bool

	// Priority determines order when several parsers serve one dialect.
	// Lower number = checked first.
	Priority() int

	// Parse parses the message. A nil result with a nil error means the
	// parser does not apply; an error is a fatal parse failure.
	Parse(msg *gds.Message) (Result, error)
}

// Registry holds all registered parsers organised for efficient dispatch.
type Registry struct {
	mu sync.RWMutex

	// byDialect maps dialects to parser slices, sorted by Priority (ascending)
	byDialect map[gds.Dialect][]Parser

	// sorted tracks whether parsers have been sorted
	sorted bool
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byDialect: make(map[gds.Dialect][]Parser),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := p.Dialect()
	r.byDialect[d] = append(r.byDialect[d], p)
	r.sorted = false
}

// Sort sorts all parser slices by priority. Call before dispatching.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sorted {
		return
	}

	for d := range r.byDialect {
		parsers := r.byDialect[d]
		sort.SliceStable(parsers, func(i, j int) bool {
			return parsers[i].Priority() < parsers[j].Priority()
		})
	}

	r.sorted = true
}

// DialectOf returns the dialect a message will be dispatched under. An
// untagged message is classified by its content.
func DialectOf(msg *gds.Message) gds.Dialect {
	if msg.Dialect != gds.DialectUnknown {
		return msg.Dialect
	}
	return gds.Detect(msg.Text)
}

// Dispatch routes a message to the parsers of its dialect and returns the
// first result. A parse failure is returned as is and stops dispatch.
// Note: Sort() should be called before Dispatch() for optimal performance.
func (r *Registry) Dispatch(msg *gds.Message) (Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.byDialect[DialectOf(msg)] {
		// Quick check before expensive parse
		if !p.QuickCheck(msg.Text) {
			continue
		}
		result, err := p.Parse(msg)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}

	return nil, ErrNoParser
}

// Lookup returns the parsers registered for a dialect, in dispatch order.
func (r *Registry) Lookup(d gds.Dialect) []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Parser, len(r.byDialect[d]))
	copy(out, r.byDialect[d])
	return out
}

// RegisteredDialects returns all dialects that have parsers registered.
func (r *Registry) RegisteredDialects() []gds.Dialect {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dialects := make([]gds.Dialect, 0, len(r.byDialect))
	for d := range r.byDialect {
		dialects = append(dialects, d)
	}
	sort.Slice(dialects, func(i, j int) bool { return dialects[i] < dialects[j] })
	return dialects
}

// ParserCount returns the total number of unique registered parsers.
func (r *Registry) ParserCount() int {
	return len(r.AllParsers())
}

// AllParsers returns all registered parsers, deduplicated by name.
// This is useful for debugging and listing available parsers.
func (r *Registry) AllParsers() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var result []Parser

	for _, d := range sortedDialects(r.byDialect) {
		for _, p := range r.byDialect[d] {
			if !seen[p.Name()] {
				seen[p.Name()] = true
				result = append(result, p)
			}
		}
	}

	return result
}

func sortedDialects(m map[gds.Dialect][]Parser) []gds.Dialect {
	out := make([]gds.Dialect, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
