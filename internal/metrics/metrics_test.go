package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.WatchStarted("contractEvent", "poll")
	m.RecordTick("filter")
	m.RecordDelivered("poll", 3)
	m.SetBackfillBlock(10)
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")

	m.WatchStarted("contractEvent", "poll")
	m.WatchStarted("contractEvent", "poll")
	m.WatchStopped("contractEvent", "poll")
	m.RecordDelivered("push", 4)
	m.RecordRequestError("eth_getLogs")

	if got := testutil.ToFloat64(m.WatchesActive.WithLabelValues("contractEvent", "poll")); got != 1 {
		t.Fatalf("watches_active mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.LogsDeliveredTotal.WithLabelValues("push")); got != 4 {
		t.Fatalf("logs_delivered mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.RequestErrorsTotal.WithLabelValues("eth_getLogs")); got != 1 {
		t.Fatalf("request_errors mismatch: %v", got)
	}
}

func TestRouterServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test")
	m.SetBackfillBlock(42)

	srv := httptest.NewServer(NewRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "test_backfill_last_block 42") {
		t.Fatalf("metric not exposed:\n%s", body)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status: %d", health.StatusCode)
	}
}
