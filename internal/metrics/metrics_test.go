package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if etlPagesFetchedTotal == nil || etlRecordsTotal == nil ||
		etlRunsTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveRun(t *testing.T) {
	Init()

	before := testutil.ToFloat64(etlRecordsTotal.WithLabelValues("inserted"))
	ObserveRun("success", 3, 60, 12, 5*time.Second)

	if got := testutil.ToFloat64(etlRecordsTotal.WithLabelValues("inserted")); got != before+12 {
		t.Fatalf("expected inserted counter to grow by 12, got %v -> %v", before, got)
	}
	if got := testutil.ToFloat64(etlRunsTotal.WithLabelValues("success")); got < 1 {
		t.Fatalf("expected at least one successful run, got %v", got)
	}
}

func TestObserveCleanup(t *testing.T) {
	Init()

	before := testutil.ToFloat64(etlCleanupFixesTotal.WithLabelValues("gre_aw"))
	ObserveCleanup(4, 0)

	if got := testutil.ToFloat64(etlCleanupFixesTotal.WithLabelValues("gre_aw")); got != before+4 {
		t.Fatalf("expected gre_aw counter to grow by 4, got %v -> %v", before, got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveHTTPRequest("GET", "/healthz", 200, 10*time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected metrics payload")
	}
}
