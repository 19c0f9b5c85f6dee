// Package reference resolves the GDS codes found in reservation text
// (carriers, stations, meal codes, equipment) to catalog identifiers.
package reference

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Kind names a reference table.
type Kind string

const (
	KindAirline      Kind = "airline"
	KindLocation     Kind = "location"
	KindFoodType     Kind = "foodType"
	KindAirplaneType Kind = "airplaneType"
)

// Kinds lists every reference table in catalog order.
var Kinds = []Kind{KindAirline, KindLocation, KindFoodType, KindAirplaneType}

// ID is a canonical catalog identifier.
type ID int64

// Resolver looks up the catalog identifier of a code. A missing code is
// reported as ok == false with a nil error; err is reserved for lookups
// that could not be performed.
type Resolver interface {
	Resolve(ctx context.Context, kind Kind, code string) (id ID, ok bool, err error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, kind Kind, code string) (ID, bool, error)

func (f ResolverFunc) Resolve(ctx context.Context, kind Kind, code string) (ID, bool, error) {
	return f(ctx, kind, code)
}

// NormalizeCode canonicalises a code before lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MapResolver is an in-memory catalog. It is safe for concurrent use.
type MapResolver struct {
	mu     sync.RWMutex
	tables map[Kind]map[string]ID
}

// NewMapResolver creates an empty catalog.
func NewMapResolver() *MapResolver {
	return &MapResolver{tables: make(map[Kind]map[string]ID)}
}

// Set adds or replaces one entry.
func (m *MapResolver) Set(kind Kind, code string, id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[kind]
	if !ok {
		t = make(map[string]ID)
		m.tables[kind] = t
	}
	t[NormalizeCode(code)] = id
}

// Resolve implements Resolver.
func (m *MapResolver) Resolve(_ context.Context, kind Kind, code string) (ID, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tables[kind][NormalizeCode(code)]
	return id, ok, nil
}

// Len returns the number of entries of one kind.
func (m *MapResolver) Len(kind Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[kind])
}

// Entries returns a copy of one table.
func (m *MapResolver) Entries(kind Kind) map[string]ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ID, len(m.tables[kind]))
	for k, v := range m.tables[kind] {
		out[k] = v
	}
	return out
}

// Catalog is the YAML layout of a reference file:
//
//	airline:
//	  LH: 1
//	location:
//	  FRA: 10
type Catalog struct {
	Airline      map[string]ID `yaml:"airline"`
	Location     map[string]ID `yaml:"location"`
	FoodType     map[string]ID `yaml:"foodType"`
	AirplaneType map[string]ID `yaml:"airplaneType"`
}

// ParseCatalog decodes a YAML catalog into a MapResolver.
func ParseCatalog(data []byte) (*MapResolver, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	m := NewMapResolver()
	for kind, table := range map[Kind]map[string]ID{
		KindAirline:      c.Airline,
		KindLocation:     c.Location,
		KindFoodType:     c.FoodType,
		KindAirplaneType: c.AirplaneType,
	} {
		for code, id := range table {
			m.Set(kind, code, id)
		}
	}
	return m, nil
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*MapResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}
