package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	trackauth "github.com/MrEthical07/trackauth"
)

type fakeSource struct {
	snap trackauth.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() trackauth.MetricsSnapshot { return f.snap }

func newFakeSource() fakeSource {
	return fakeSource{snap: trackauth.MetricsSnapshot{
		Counters: map[trackauth.MetricID]uint64{
			trackauth.MetricLoginSuccess:  7,
			trackauth.MetricLoginFailure:  3,
			trackauth.MetricRefreshReplay: 1,
		},
		Histograms: map[trackauth.MetricID][]uint64{
			// 8 buckets: 5/10/25/50/100/250/500ms and overflow.
			trackauth.MetricCheckLatency: {4, 2, 0, 0, 0, 0, 1, 1},
		},
	}}
}

func gather(t *testing.T, source Source) map[string]float64 {
	t.Helper()

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	out := make(map[string]float64, len(families))
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[fam.GetName()] = c.GetValue()
			}
		}
	}
	return out
}

func TestCollectorCounters(t *testing.T) {
	values := gather(t, newFakeSource())

	cases := map[string]float64{
		"trackauth_login_success_total":  7,
		"trackauth_login_failure_total":  3,
		"trackauth_refresh_replay_total": 1,
		"trackauth_logout_total":         0,
	}
	for name, want := range cases {
		got, ok := values[name]
		if !ok {
			t.Fatalf("metric %s missing from scrape", name)
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
	}
}

func TestCollectorHistogram(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(newFakeSource())); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, fam := range families {
		if fam.GetName() != "trackauth_check_duration_seconds" {
			continue
		}
		h := fam.GetMetric()[0].GetHistogram()
		if h == nil {
			t.Fatal("expected a histogram metric")
		}
		if got := h.GetSampleCount(); got != 8 {
			t.Fatalf("sample count = %d, want 8", got)
		}
		// Cumulative count at the 10ms bound covers the first two buckets.
		for _, b := range h.GetBucket() {
			if b.GetUpperBound() == 0.010 && b.GetCumulativeCount() != 6 {
				t.Fatalf("cumulative at 10ms = %d, want 6", b.GetCumulativeCount())
			}
		}
		return
	}
	t.Fatal("trackauth_check_duration_seconds missing from scrape")
}

func TestCollectorSkipsHistogramWithoutSamples(t *testing.T) {
	source := fakeSource{snap: trackauth.MetricsSnapshot{
		Counters:   map[trackauth.MetricID]uint64{},
		Histograms: map[trackauth.MetricID][]uint64{},
	}}

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == "trackauth_check_duration_seconds" {
			t.Fatal("histogram must be omitted when the engine records none")
		}
	}
}

func TestHandlerServesScrape(t *testing.T) {
	srv := httptest.NewServer(Handler(newFakeSource()))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "trackauth_login_success_total 7") {
		t.Fatalf("scrape output missing counter:\n%s", body)
	}
}
