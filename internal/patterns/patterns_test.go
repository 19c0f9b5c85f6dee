package patterns

import (
	"strings"
	"testing"
)

var normalizeSamples = []string{
	"",
	"1 LH9694Y 12JUN 5 FRAADD SS1  2205  0615   13JUN 6 /DCLH /E",
	"1 LH9694Y 12JUN 5 FRAADD SS1 2205 0615\n   /DCLH /E",
	"  \n\n  1 LH9694Y 12JUN 5 FRAADD SS1 2205 0615\n\n\n   VI*«\n  1 LH*9694 12JUN FRA ADD 2205  0615 ‡1 M    788  7.10  3324  N\n",
	"A\n \n/B",
	"A \n/B\n/C",
	", ,\n a,b\r\nc\r\n\r\n  d",
	"1.1CHERNOVA/LIUDMILA  2.1IVANOV/IVAN\n  \n",
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse spaces", "1  LH   9694Y", "1 LH 9694Y"},
		{"join continuation", "2205 0615\n   /DCLH /E", "2205 0615 /DCLH /E"},
		{"join without indent", "0615\n/E", "0615 /E"},
		{"join after trailing space", "0615 \n /E", "0615 /E"},
		{"join across blank line", "0615\n\n /E", "0615 /E"},
		{"keep normal lines", "line one\n line two", "line one\n line two"},
		{"crlf", "a\r\nb", "a\nb"},
		{"single spaces untouched", "1.1CHERNOVA/LIUDMILA MRS", "1.1CHERNOVA/LIUDMILA MRS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeStrict(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading blank run", "\n\n  ,  1 LH", "1 LH"},
		{"indent removed", "a\n   b\n  c", "a\nb\nc"},
		{"blank lines collapsed", "a\n\n\nb", "a\nb"},
		{"whitespace-only line", "a\n \nb", "a\nb"},
		{"continuation still joined", "a 0615\n\n   /E", "a 0615 /E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeStrict(tt.in); got != tt.want {
				t.Errorf("NormalizeStrict(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, s := range normalizeSamples {
		once := Normalize(s)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", s, once, twice)
		}

		strict := NormalizeStrict(s)
		if twice := NormalizeStrict(strict); twice != strict {
			t.Errorf("NormalizeStrict not idempotent for %q: %q -> %q", s, strict, twice)
		}
	}
}

func TestNormalizeStrict_Shape(t *testing.T) {
	for _, s := range normalizeSamples {
		out := NormalizeStrict(s)
		if strings.Contains(out, "\n\n") {
			t.Errorf("NormalizeStrict(%q) contains blank line: %q", s, out)
		}
		if strings.Contains(out, "  ") {
			t.Errorf("NormalizeStrict(%q) contains double space: %q", s, out)
		}
		for i, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, " ") {
				t.Errorf("NormalizeStrict(%q) line %d has leading space: %q", s, i, line)
			}
		}
		if out != "" && strings.ContainsAny(out[:1], "\n, ") {
			t.Errorf("NormalizeStrict(%q) starts with a separator: %q", s, out)
		}
	}
}

func TestSplitRows(t *testing.T) {
	got := SplitRows("a\nb,c\n\n,d\n")
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("SplitRows() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitRows()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
