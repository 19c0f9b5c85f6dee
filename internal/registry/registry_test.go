package registry

import (
	"errors"
	"strings"
	"testing"

	"gds_parser/internal/gds"
)

type fakeResult struct {
	kind string
	id   int64
}

func (r *fakeResult) Type() string     { return r.kind }
func (r *fakeResult) MessageID() int64 { return r.id }

type fakeParser struct {
	name     string
	dialect  gds.Dialect
	priority int
	prefix   string
	err      error
	calls    int
}

func (p *fakeParser) Name() string         { return p.name }
func (p *fakeParser) Dialect() gds.Dialect { return p.dialect }
func (p *fakeParser) Priority() int        { return p.priority }
func (p *fakeParser) QuickCheck(text string) bool {
	return strings.HasPrefix(text, p.prefix)
}
func (p *fakeParser) Parse(msg *gds.Message) (Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &fakeResult{kind: p.name, id: int64(msg.ID)}, nil
}

func TestDispatchByDialect(t *testing.T) {
	r := New()
	offer := &fakeParser{name: "offer", dialect: gds.DialectOffer}
	sale := &fakeParser{name: "sale", dialect: gds.DialectSale}
	r.Register(offer)
	r.Register(sale)
	r.Sort()

	res, err := r.Dispatch(&gds.Message{ID: 3, Dialect: gds.DialectSale, Text: "anything"})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Type() != "sale" || res.MessageID() != 3 {
		t.Errorf("result = %s/%d, want sale/3", res.Type(), res.MessageID())
	}
	if offer.calls != 0 {
		t.Errorf("offer parser called %d times", offer.calls)
	}
}

func TestDispatchDetectsDialect(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "offer", dialect: gds.DialectOffer})
	r.Register(&fakeParser{name: "sale", dialect: gds.DialectSale})

	tests := []struct {
		text string
		want string
	}{
		{"1.1CHERNOVA/LIUDMILA\n1 LH 9694Y 12JUN 5 FRA ADD SS1 2205 0615 /DCLH /E", "sale"},
		{"1 LH 9694 12JUN FRA ADD HK1 2205 0615 E0/LH", "offer"},
	}
	for _, tt := range tests {
		res, err := r.Dispatch(&gds.Message{Text: tt.text})
		if err != nil {
			t.Errorf("Dispatch(%q) error: %v", tt.text, err)
			continue
		}
		if res.Type() != tt.want {
			t.Errorf("Dispatch(%q) = %s, want %s", tt.text, res.Type(), tt.want)
		}
	}
}

func TestDispatchPriorityAndQuickCheck(t *testing.T) {
	r := New()
	slow := &fakeParser{name: "slow", dialect: gds.DialectOffer, priority: 200}
	picky := &fakeParser{name: "picky", dialect: gds.DialectOffer, priority: 10, prefix: "VI"}
	r.Register(slow)
	r.Register(picky)
	r.Sort()

	res, err := r.Dispatch(&gds.Message{Dialect: gds.DialectOffer, Text: "1 LH"})
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.Type() != "slow" {
		t.Errorf("result = %s, want slow", res.Type())
	}
	if picky.calls != 0 {
		t.Error("picky parser should have been skipped by QuickCheck")
	}

	res, _ = r.Dispatch(&gds.Message{Dialect: gds.DialectOffer, Text: "VI*"})
	if res.Type() != "picky" {
		t.Errorf("result = %s, want picky", res.Type())
	}
}

func TestDispatchErrors(t *testing.T) {
	r := New()
	fatal := errors.New("boom")
	r.Register(&fakeParser{name: "offer", dialect: gds.DialectOffer, err: fatal})

	if _, err := r.Dispatch(&gds.Message{Dialect: gds.DialectOffer, Text: "x"}); !errors.Is(err, fatal) {
		t.Errorf("err = %v, want %v", err, fatal)
	}
	if _, err := r.Dispatch(&gds.Message{Dialect: gds.DialectSale, Text: "x"}); !errors.Is(err, ErrNoParser) {
		t.Errorf("err = %v, want ErrNoParser", err)
	}
}

func TestRegistryListing(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "sale", dialect: gds.DialectSale})
	r.Register(&fakeParser{name: "offer", dialect: gds.DialectOffer})
	r.Register(&fakeParser{name: "offer", dialect: gds.DialectOffer})

	if got := r.ParserCount(); got != 2 {
		t.Errorf("ParserCount = %d, want 2", got)
	}
	dialects := r.RegisteredDialects()
	if len(dialects) != 2 || dialects[0] != gds.DialectOffer || dialects[1] != gds.DialectSale {
		t.Errorf("RegisteredDialects = %v", dialects)
	}
	if len(r.Lookup(gds.DialectOffer)) != 2 {
		t.Errorf("Lookup(offer) = %d parsers, want 2", len(r.Lookup(gds.DialectOffer)))
	}
}
