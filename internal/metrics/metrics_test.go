package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveWrite("mydb", "accepted")
	m.ObserveRejectedLine("parse_error")
	m.ObserveTableBufferRows("mydb", "cpu", 5)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered collectors to produce metric families")
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "gen1db_writes_total" {
			found = true
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 1 {
					t.Errorf("expected write counter to be 1, got %v", metric.GetCounter().GetValue())
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected gen1db_writes_total to be registered")
	}
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	// Must not panic on a nil receiver.
	m.ObserveWrite("mydb", "accepted")
	m.ObserveRejectedLine("parse_error")
	m.ObserveTableBufferRows("mydb", "cpu", 1)
}

func TestTableBufferRowsGaugeValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveTableBufferRows("mydb", "cpu", 42)

	out := &dto.Metric{}
	gauge, err := m.TableBufferRows.GetMetricWithLabelValues("mydb", "cpu")
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	if err := gauge.Write(out); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.GetGauge().GetValue() != 42 {
		t.Fatalf("expected gauge value 42, got %v", out.GetGauge().GetValue())
	}
}
