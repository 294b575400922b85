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

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementEvent(OutcomeRewritten)
	m.IncrementEvent(OutcomeRewritten)
	m.AddRewrites("paywall", 3)
	m.AddRewrites("social", 0)
	m.IncrementCommand("!addsite", false)
	m.SetEffectiveDomains(42)

	if got := testutil.ToFloat64(m.Events.WithLabelValues(OutcomeRewritten)); got != 2 {
		t.Errorf("events = %v", got)
	}
	if got := testutil.ToFloat64(m.Rewrites.WithLabelValues("paywall")); got != 3 {
		t.Errorf("rewrites = %v", got)
	}
	if got := testutil.ToFloat64(m.Commands.WithLabelValues("!addsite", "failed")); got != 1 {
		t.Errorf("commands = %v", got)
	}
	if got := testutil.ToFloat64(m.EffectiveDomains); got != 42 {
		t.Errorf("gauge = %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.IncrementEvent(OutcomeDuplicate)
	m.AddRewrites("paywall", 1)
	m.IncrementCommand("!listsites", true)
	m.IncrementSendFailure("direct")
	m.SetEffectiveDomains(1)
	m.ObserveHandleLatency(0)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).IncrementEvent(OutcomeCommand)

	up := map[string]bool{"rocketchat": true}
	srv := httptest.NewServer(Handler(reg, func() map[string]bool { return up }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `paywallbot_events_total{outcome="command"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d, want 200", resp.StatusCode)
	}

	up["rocketchat"] = false
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("healthz = %d, want 503", resp.StatusCode)
	}
}
