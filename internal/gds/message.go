// Package gds provides the reservation text message types shared by all parsers.
package gds

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt64 handles JSON fields that can be either string or number.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	// Try as number first
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	// Try as string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil // Silently ignore unparseable IDs
		}
		*f = FlexInt64(i)
		return nil
	}

	*f = 0
	return nil
}

// Dialect tags reservation text as an offer (quoted itinerary) or a sale (booked PNR).
type Dialect string

const (
	DialectUnknown Dialect = ""
	DialectOffer   Dialect = "offer"
	DialectSale    Dialect = "sale"
)

// ParseDialect converts user input to a Dialect. Unrecognised values map to DialectUnknown.
func ParseDialect(s string) Dialect {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offer", "o":
		return DialectOffer
	case "sale", "s", "pnr":
		return DialectSale
	default:
		return DialectUnknown
	}
}

// Message is one block of GDS terminal text submitted for extraction.
type Message struct {
	ID        FlexInt64 `json:"id"`
	Dialect   Dialect   `json:"dialect,omitempty"`
	Text      string    `json:"text"`
	Source    string    `json:"source,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// FeedWrapper is the envelope used on the message feed, where the text
// is nested inside "message" and sender metadata sits at the top level.
type FeedWrapper struct {
	Source  *FeedSource `json:"source,omitempty"`
	Message *FeedInner  `json:"message,omitempty"`
}

// FeedSource identifies the desk or system that produced the text.
type FeedSource struct {
	Name  string `json:"name,omitempty"`
	Agent string `json:"agent,omitempty"`
}

// FeedInner is the inner message structure of the feed envelope.
type FeedInner struct {
	ID        FlexInt64 `json:"id"`
	Timestamp string    `json:"timestamp"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
}

// ToMessage converts a FeedWrapper to a unified Message.
func (w *FeedWrapper) ToMessage() *Message {
	if w.Message == nil {
		return nil
	}

	msg := &Message{
		ID:        w.Message.ID,
		Timestamp: w.Message.Timestamp,
		Dialect:   ParseDialect(w.Message.Kind),
		Text:      w.Message.Text,
	}
	if w.Source != nil {
		msg.Source = w.Source.Name
		msg.Agent = w.Source.Agent
	}

	return msg
}

// Decode accepts either a feed envelope or a flat message and returns the Message.
// Returns nil when neither form carries any text.
func Decode(b []byte) *Message {
	var w FeedWrapper
	if err := json.Unmarshal(b, &w); err == nil && w.Message != nil {
		if msg := w.ToMessage(); msg != nil && strings.TrimSpace(msg.Text) != "" {
			return msg
		}
	}

	var m Message
	if err := json.Unmarshal(b, &m); err == nil && strings.TrimSpace(m.Text) != "" {
		m.Dialect = ParseDialect(string(m.Dialect))
		return &m
	}

	return nil
}

// Detect guesses the dialect of untagged text. Sale text always carries
// at least one passenger name element ("1.1SURNAME/"), offers never do.
func Detect(text string) Dialect {
	if HasPassengerMarker(text) {
		return DialectSale
	}
	return DialectOffer
}

// HasPassengerMarker reports whether text contains a "<digit>.<digit><letter><letter>" run
// followed later on the same token by '/'.
func HasPassengerMarker(text string) bool {
	for i := 0; i+4 < len(text); i++ {
		if !isDigit(text[i]) || text[i+1] != '.' || !isDigit(text[i+2]) ||
			!isLetter(text[i+3]) || !isLetter(text[i+4]) {
			continue
		}
		j := i + 5
		for j < len(text) && isLetter(text[j]) {
			j++
		}
		if j < len(text) && text[j] == '/' {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }
