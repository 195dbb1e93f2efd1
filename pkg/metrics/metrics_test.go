package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/morezero/command-bridge/pkg/dispatcher"
)

const metricsTestPrefix = "metrics:metrics_test"

func TestMetrics_CommandCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Registry: reg})

	m.CommandCompleted(context.Background(), dispatcher.Outcome{Type: "noop_echo", Status: "success", Duration: time.Millisecond})
	m.CommandCompleted(context.Background(), dispatcher.Outcome{Type: "noop_echo", Status: "success"})
	m.CommandCompleted(context.Background(), dispatcher.Outcome{Status: "error"})

	if got := testutil.ToFloat64(m.commandsTotal.WithLabelValues("noop_echo", "success")); got != 2 {
		t.Errorf("%s - noop_echo success = %v, want 2", metricsTestPrefix, got)
	}
	if got := testutil.ToFloat64(m.commandsTotal.WithLabelValues("invalid", "error")); got != 1 {
		t.Errorf("%s - invalid error = %v, want 1", metricsTestPrefix, got)
	}
}

func TestMetrics_Connections(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Registry: reg})

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Ping()
	m.Rejected("queue_full")
	m.SetPending(7)
	m.TickCompleted(0, 0)
	m.TickCompleted(3, 0)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"open", m.connectionsOpen, 1},
		{"total", m.connectionsTotal, 2},
		{"pings", m.pingsTotal, 1},
		{"pending", m.pending, 7},
		{"ticks", m.ticksTotal, 2},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s - %s = %v, want %v", metricsTestPrefix, c.name, got, c.want)
		}
	}
	if got := testutil.ToFloat64(m.rejectedTotal.WithLabelValues("queue_full")); got != 1 {
		t.Errorf("%s - rejected = %v, want 1", metricsTestPrefix, got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.CommandCompleted(context.Background(), dispatcher.Outcome{})
	m.TickCompleted(1, 0)
	m.SetPending(1)
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Ping()
	m.Rejected("x")
}

func TestMetrics_Gather(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(Config{Namespace: "editor", Registry: reg})
	m.CommandCompleted(context.Background(), dispatcher.Outcome{Type: "read_console", Status: "success"})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("%s - Gather: %v", metricsTestPrefix, err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "editor_commands_total" {
			found = true
		}
	}
	if !found {
		t.Errorf("%s - editor_commands_total not registered", metricsTestPrefix)
	}
}
