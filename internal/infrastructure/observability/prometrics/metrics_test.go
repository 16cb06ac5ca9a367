package prometrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
)

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "minishop", "inventory")

	c1 := r.Counter("lookups_total", "help", "outcome")
	c2 := r.Counter("lookups_total", "help", "outcome")
	c1.Add(1, observability.L("outcome", "success"))
	c2.Bind(observability.L("outcome", "success")).Add(2)

	vec := r.(*registry).counters["lookups_total"]
	if got := testutil.ToFloat64(vec.WithLabelValues("success")); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestHistogramDefaultsBuckets(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "", "")

	h := r.Histogram("latency_seconds", "help", nil, "route")
	h.Observe(0.1, observability.L("route", "/stock/id"))
	h.Bind(observability.L("route", "/stock/id")).Observe(0.3)

	n, err := testutil.GatherAndCount(reg, "latency_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one series, got %d", n)
	}
}

func TestStandardRegistersAllKeys(t *testing.T) {
	counters, histograms := Standard(New(prometheus.NewRegistry(), "", ""))
	for _, k := range []observability.MetricKey{observability.MUsecaseRequests, observability.MHTTPRequests, observability.MExternalRequests} {
		if counters[k] == nil {
			t.Fatalf("missing counter %s", k)
		}
	}
	for _, k := range []observability.MetricKey{observability.MUsecaseDuration, observability.MHTTPRequestDuration, observability.MExternalRequestDuration} {
		if histograms[k] == nil {
			t.Fatalf("missing histogram %s", k)
		}
	}
}
