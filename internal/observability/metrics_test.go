package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.InstructionsProcessed.WithLabelValues("stake", "ok").Inc()
	m.RewardsPaid.Add(250)

	if got := testutil.ToFloat64(m.InstructionsProcessed.WithLabelValues("stake", "ok")); got != 1 {
		t.Errorf("instructions processed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RewardsPaid); got != 250 {
		t.Errorf("rewards paid = %v, want 250", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}

func TestRecordInstruction_Failure(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.InstructionFailures.WithLabelValues("unstake", "TooEarly"))
	RecordInstruction("unstake", "TooEarly", 0.001)
	after := testutil.ToFloat64(DefaultMetrics.InstructionFailures.WithLabelValues("unstake", "TooEarly"))
	if after-before != 1 {
		t.Errorf("failure counter delta = %v, want 1", after-before)
	}
}

func TestRecordHistoryWrite(t *testing.T) {
	errsBefore := testutil.ToFloat64(DefaultMetrics.HistoryWriteErrors)
	archivedBefore := testutil.ToFloat64(DefaultMetrics.StakeEventsArchived)

	RecordHistoryWrite(3, nil)
	RecordHistoryWrite(1, errors.New("down"))

	if d := testutil.ToFloat64(DefaultMetrics.StakeEventsArchived) - archivedBefore; d != 3 {
		t.Errorf("archived delta = %v, want 3", d)
	}
	if d := testutil.ToFloat64(DefaultMetrics.HistoryWriteErrors) - errsBefore; d != 1 {
		t.Errorf("error delta = %v, want 1", d)
	}
}
