package analytics

import (
	"fmt"
	"testing"
	"time"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.TrackWorkflowStart("wf-1", "s-1", "checkout")
	c.TrackWorkflowCompletion("wf-1", 6)
	c.TrackToolExecution("initiate_order", true, time.Millisecond, ToolContext{})
	if m := c.Metrics(); m.TotalWorkflows != 0 {
		t.Errorf("nil collector should report empty metrics, got %+v", m)
	}
	if got := c.HealthIndicators(); got.Overall != HealthHealthy {
		t.Errorf("nil collector should be healthy, got %q", got.Overall)
	}
	if snap := c.Export(); snap.Version != ExportVersion {
		t.Errorf("nil export still carries the version, got %d", snap.Version)
	}
}

func TestCompletionRateOverFinishedWorkflows(t *testing.T) {
	c := NewCollector()
	c.TrackWorkflowStart("wf-1", "s-1", "checkout")
	c.TrackWorkflowStart("wf-2", "s-2", "checkout")
	c.TrackWorkflowCompletion("wf-1", 7)

	m := c.Metrics()
	if m.TotalWorkflows != 2 || m.Active != 1 || m.Completed != 1 {
		t.Fatalf("unexpected funnel: %+v", m)
	}
	// Rates are over finished workflows, so one completion of one finished is 100.
	if m.CompletionRate != 100 {
		t.Errorf("expected completion rate 100, got %v", m.CompletionRate)
	}
}

func TestTerminalEventAppliesOnce(t *testing.T) {
	c := NewCollector()
	c.TrackWorkflowStart("wf-1", "s-1", "checkout")
	c.TrackWorkflowCompletion("wf-1", 7)
	c.TrackWorkflowCancellation("wf-1", 3)
	c.TrackWorkflowError("wf-1", "late: error")

	m := c.Metrics()
	if m.Completed != 1 || m.Cancelled != 0 || m.Errored != 0 {
		t.Errorf("later terminal events must be ignored: %+v", m)
	}
}

func TestWorkflowCapacityEvictsOldest(t *testing.T) {
	c := NewCollector(WithWorkflowCapacity(3))
	for i := 0; i < 5; i++ {
		c.TrackWorkflowStart(fmt.Sprintf("wf-%d", i), "s", "checkout")
	}
	m := c.Metrics()
	if m.TotalWorkflows != 3 {
		t.Fatalf("expected capacity 3 retained, got %d", m.TotalWorkflows)
	}
	// Terminal events for evicted workflows are dropped, not resurrected.
	c.TrackWorkflowCompletion("wf-0", 7)
	if m := c.Metrics(); m.Completed != 0 {
		t.Errorf("evicted workflow must not complete, got %+v", m)
	}
}

func TestToolExecutionAggregates(t *testing.T) {
	c := NewCollector()
	c.TrackToolExecution("calculate_shipping", true, 100*time.Millisecond, ToolContext{})
	c.TrackToolExecution("calculate_shipping", false, 300*time.Millisecond, ToolContext{Error: "timeout: provider down"})

	perfs := c.ToolPerformance()
	if len(perfs) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(perfs))
	}
	p := perfs[0]
	if p.Total != 2 || p.Successful != 1 || p.Failed != 1 {
		t.Errorf("unexpected counts: %+v", p)
	}
	if p.AverageDuration != 200*time.Millisecond {
		t.Errorf("expected running average 200ms, got %v", p.AverageDuration)
	}
	if p.SuccessRate != 50 {
		t.Errorf("expected success rate 50, got %v", p.SuccessRate)
	}
	if p.MinDuration != 100*time.Millisecond || p.MaxDuration != 300*time.Millisecond {
		t.Errorf("unexpected min/max: %v/%v", p.MinDuration, p.MaxDuration)
	}
	if p.TopError != "timeout" {
		t.Errorf("expected error category %q, got %q", "timeout", p.TopError)
	}
}

func TestToolExecutionUpdatesWorkflowRecord(t *testing.T) {
	c := NewCollector()
	c.TrackWorkflowStart("wf-1", "s-1", "checkout")
	ctx := ToolContext{WorkflowID: "wf-1"}
	c.TrackToolExecution("initiate_order", true, time.Millisecond, ctx)
	c.TrackToolExecution("select_address", true, time.Millisecond, ctx)
	c.TrackToolExecution("select_address", true, time.Millisecond, ctx)

	snap := c.Export()
	if len(snap.Workflows) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(snap.Workflows))
	}
	rec := snap.Workflows[0]
	if len(rec.ToolsUsed) != 2 {
		t.Errorf("tools-used must be unique, got %v", rec.ToolsUsed)
	}
	if rec.StepsCompleted != 3 {
		t.Errorf("expected 3 steps counted, got %d", rec.StepsCompleted)
	}
}

func TestRecentLogBounded(t *testing.T) {
	c := NewCollector(WithRecentLimit(5))
	for i := 0; i < 9; i++ {
		c.TrackToolExecution("confirm_order", true, time.Duration(i)*time.Millisecond, ToolContext{})
	}
	snap := c.Export()
	tool := snap.Tools["confirm_order"]
	if tool.Total != 9 {
		t.Errorf("aggregates must survive the bound, got total %d", tool.Total)
	}
	if len(tool.Recent) != 5 {
		t.Fatalf("expected recent log bounded to 5, got %d", len(tool.Recent))
	}
	if tool.Recent[0].Duration != 4*time.Millisecond {
		t.Errorf("expected the oldest entries dropped, got first %v", tool.Recent[0].Duration)
	}
}

func TestErrorCategory(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "unknown"},
		{"timeout", "timeout"},
		{"timeout: provider down", "timeout"},
		{"load user: get user x: not found", "load user"},
	}
	for _, tc := range cases {
		if got := errorCategory(tc.in); got != tc.want {
			t.Errorf("errorCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDailyReportDeltas(t *testing.T) {
	c := NewCollector()
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.TrackWorkflowStart("wf-1", "s", "checkout")
	c.TrackWorkflowCompletion("wf-1", 7)

	current = current.AddDate(0, 0, 1)
	c.TrackWorkflowStart("wf-2", "s", "checkout")
	c.TrackWorkflowStart("wf-3", "s", "checkout")
	c.TrackWorkflowCompletion("wf-2", 7)
	c.TrackWorkflowCancellation("wf-3", 2)

	report := c.DailyReport(current)
	if report.Summary.Started != 2 || report.Summary.Completed != 1 || report.Summary.Cancelled != 1 {
		t.Fatalf("unexpected day summary: %+v", report.Summary)
	}
	if report.StartedDelta != 1 || report.CompletedDelta != 0 {
		t.Errorf("unexpected deltas: started %+d completed %+d", report.StartedDelta, report.CompletedDelta)
	}
	if report.CompletionRate != 50 {
		t.Errorf("expected daily completion rate 50, got %v", report.CompletionRate)
	}
}

func TestDayBucketRetention(t *testing.T) {
	c := NewCollector(WithRetentionDays(2))
	current := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	for i := 0; i < 4; i++ {
		c.TrackWorkflowStart(fmt.Sprintf("wf-%d", i), "s", "checkout")
		current = current.AddDate(0, 0, 1)
	}
	snap := c.Export()
	if len(snap.Days) != 2 {
		t.Fatalf("expected 2 retained days, got %d", len(snap.Days))
	}
	if snap.Days[0].Date != "2026-03-03" || snap.Days[1].Date != "2026-03-04" {
		t.Errorf("expected the newest days retained, got %v, %v", snap.Days[0].Date, snap.Days[1].Date)
	}
}

func TestHealthVerdicts(t *testing.T) {
	c := NewCollector()
	if got := c.HealthIndicators(); got.Overall != HealthWarning {
		// A fresh engine has zero volume today, which is the only degraded signal.
		t.Errorf("expected warning for an idle engine, got %q", got.Overall)
	}

	c.TrackWorkflowStart("wf-1", "s", "checkout")
	c.TrackWorkflowCompletion("wf-1", 7)
	c.TrackToolExecution("confirm_order", true, 10*time.Millisecond, ToolContext{})
	if got := c.HealthIndicators(); got.Overall != HealthHealthy {
		t.Errorf("expected healthy after a completed workflow, got %+v", got)
	}

	// Many errored workflows push the error rate past critical.
	for i := 0; i < 9; i++ {
		id := fmt.Sprintf("bad-%d", i)
		c.TrackWorkflowStart(id, "s", "checkout")
		c.TrackWorkflowError(id, "db: connection refused")
	}
	if got := c.HealthIndicators(); got.Overall != HealthCritical {
		t.Errorf("expected critical under a 90%% error rate, got %+v", got)
	}
}

func TestSuperlativeTools(t *testing.T) {
	c := NewCollector()
	c.TrackToolExecution("fast_tool", true, 10*time.Millisecond, ToolContext{})
	c.TrackToolExecution("fast_tool", true, 10*time.Millisecond, ToolContext{})
	c.TrackToolExecution("slow_tool", false, 2*time.Second, ToolContext{Error: "timeout: x"})

	if got := c.MostUsedTool(); got != "fast_tool" {
		t.Errorf("most used = %q", got)
	}
	if got := c.SlowestTool(); got != "slow_tool" {
		t.Errorf("slowest = %q", got)
	}
	if got := c.MostReliableTool(); got != "fast_tool" {
		t.Errorf("most reliable = %q", got)
	}
}

func TestExportSnapshotIsVersionedCopy(t *testing.T) {
	c := NewCollector()
	c.TrackWorkflowStart("wf-1", "s-1", "checkout")
	c.TrackToolExecution("initiate_order", true, time.Millisecond, ToolContext{WorkflowID: "wf-1"})

	snap := c.Export()
	if snap.Version != ExportVersion {
		t.Errorf("expected version %d, got %d", ExportVersion, snap.Version)
	}
	if len(snap.Workflows) != 1 || len(snap.Tools) != 1 || len(snap.Days) != 1 {
		t.Fatalf("incomplete snapshot: %+v", snap)
	}

	// Mutating the snapshot must not leak back into the collector.
	snap.Workflows[0].Status = StatusError
	snap.Tools["initiate_order"].Recent[0] = ToolExecution{}
	if m := c.Metrics(); m.Errored != 0 {
		t.Error("snapshot mutation leaked into collector records")
	}
}
