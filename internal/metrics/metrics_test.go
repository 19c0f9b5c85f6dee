package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gds_parser/internal/diag"
	"gds_parser/internal/rows"
)

func TestObserveParse(t *testing.T) {
	before := testutil.ToFloat64(parsesTotal.WithLabelValues("offer", OutcomeFatal))
	ObserveParse("offer", OutcomeFatal, time.Millisecond)
	after := testutil.ToFloat64(parsesTotal.WithLabelValues("offer", OutcomeFatal))

	if after-before != 1 {
		t.Errorf("gds_parses_total delta = %v, want 1", after-before)
	}
}

func TestObserveStats(t *testing.T) {
	scanned := testutil.ToFloat64(rowsScanned.WithLabelValues("prices"))
	matched := testutil.ToFloat64(rowsMatched.WithLabelValues("prices"))
	dropped := testutil.ToFloat64(rowsDropped.WithLabelValues("prices"))

	ObserveStats(map[string]rows.Stats{"prices": {Scanned: 5, Matched: 3}})

	if d := testutil.ToFloat64(rowsScanned.WithLabelValues("prices")) - scanned; d != 5 {
		t.Errorf("scanned delta = %v, want 5", d)
	}
	if d := testutil.ToFloat64(rowsMatched.WithLabelValues("prices")) - matched; d != 3 {
		t.Errorf("matched delta = %v, want 3", d)
	}
	if d := testutil.ToFloat64(rowsDropped.WithLabelValues("prices")) - dropped; d != 2 {
		t.Errorf("dropped delta = %v, want 2", d)
	}
}

func TestObserveWarnings(t *testing.T) {
	before := testutil.ToFloat64(warningsTotal.WithLabelValues("location"))
	ObserveWarnings([]diag.Warning{
		{Category: diag.CategoryLocation, Value: "ADD"},
		{Category: diag.CategoryLocation, Value: "KBP"},
		{Category: diag.CategoryAirline, Value: "ZZ"},
	})
	if d := testutil.ToFloat64(warningsTotal.WithLabelValues("location")) - before; d != 2 {
		t.Errorf("location warnings delta = %v, want 2", d)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	Register()
	Register() // Second call must not panic.

	ObserveHTTPRequest(http.MethodPost, "/api/v1/parse", http.StatusOK, 5*time.Millisecond)
	IncFeedMessage()
	IncFeedError("decode")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"gds_http_requests_total", "gds_feed_messages_total", "gds_feed_errors_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
