package analytics

import (
	"sort"
	"time"
)

// ExportVersion identifies the structured export snapshot format.
const ExportVersion = 1

// Health thresholds. Each numeric signal maps to healthy/warning/critical;
// the overall verdict is the worst individual level.
const (
	healthyCompletionRate = 70.0
	warningCompletionRate = 40.0
	healthyErrorRate      = 5.0
	warningErrorRate      = 15.0
	healthyAvgDuration    = 1 * time.Second
	warningAvgDuration    = 3 * time.Second
	warningMinVolume      = 1 // below this daily volume the engine is idle
)

// Metrics is the overall workflow funnel snapshot derived on demand.
type Metrics struct {
	TotalWorkflows   int           `json:"total_workflows"`
	Active           int           `json:"active"`
	Completed        int           `json:"completed"`
	Cancelled        int           `json:"cancelled"`
	Errored          int           `json:"errored"`
	CompletionRate   float64       `json:"completion_rate"`
	CancellationRate float64       `json:"cancellation_rate"`
	ErrorRate        float64       `json:"error_rate"`
	AverageDuration  time.Duration `json:"average_duration"`
}

// Metrics derives the overall funnel numbers from the retained records.
// Rates are percentages over finished workflows.
func (c *Collector) Metrics() Metrics {
	if c == nil {
		return Metrics{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var m Metrics
	var finished int
	var totalDuration time.Duration
	for _, id := range c.order {
		rec := c.records[id]
		m.TotalWorkflows++
		switch rec.Status {
		case StatusStarted:
			m.Active++
		case StatusCompleted:
			m.Completed++
		case StatusCancelled:
			m.Cancelled++
		case StatusError:
			m.Errored++
		}
		if rec.Status != StatusStarted {
			finished++
			totalDuration += rec.Duration
		}
	}
	if finished > 0 {
		m.CompletionRate = percent(m.Completed, finished)
		m.CancellationRate = percent(m.Cancelled, finished)
		m.ErrorRate = percent(m.Errored, finished)
		m.AverageDuration = totalDuration / time.Duration(finished)
	}
	return m
}

// ToolPerformance is the derived per-tool view.
type ToolPerformance struct {
	Name            string        `json:"name"`
	Total           int           `json:"total"`
	Successful      int           `json:"successful"`
	Failed          int           `json:"failed"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	MedianDuration  time.Duration `json:"median_duration"`
	MinDuration     time.Duration `json:"min_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	PeakHour        int           `json:"peak_hour"`
	TopError        string        `json:"top_error,omitempty"`
}

// ToolPerformance derives per-tool statistics, sorted by call volume
// descending. Median/min/max/peak-hour come from the bounded recent log.
func (c *Collector) ToolPerformance() []ToolPerformance {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ToolPerformance, 0, len(c.tools))
	for name, stats := range c.tools {
		perf := ToolPerformance{
			Name:            name,
			Total:           stats.total,
			Successful:      stats.successful,
			Failed:          stats.failed,
			SuccessRate:     percent(stats.successful, stats.total),
			AverageDuration: stats.avg,
		}
		fillRecentStats(&perf, stats.recent)
		out = append(out, perf)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MostUsedTool returns the tool with the highest call volume, or "" when no
// tool has run yet.
func (c *Collector) MostUsedTool() string {
	perfs := c.ToolPerformance()
	if len(perfs) == 0 {
		return ""
	}
	return perfs[0].Name
}

// SlowestTool returns the tool with the highest average duration.
func (c *Collector) SlowestTool() string {
	perfs := c.ToolPerformance()
	var name string
	var worst time.Duration
	for _, p := range perfs {
		if p.AverageDuration > worst {
			worst = p.AverageDuration
			name = p.Name
		}
	}
	return name
}

// MostReliableTool returns the tool with the highest success rate among tools
// that have run at least once.
func (c *Collector) MostReliableTool() string {
	perfs := c.ToolPerformance()
	var name string
	best := -1.0
	for _, p := range perfs {
		if p.SuccessRate > best {
			best = p.SuccessRate
			name = p.Name
		}
	}
	return name
}

// WorkflowTypePerformance is the per-workflow-type funnel view.
type WorkflowTypePerformance struct {
	Type            string        `json:"type"`
	Started         int           `json:"started"`
	Completed       int           `json:"completed"`
	Cancelled       int           `json:"cancelled"`
	Errored         int           `json:"errored"`
	CompletionRate  float64       `json:"completion_rate"`
	AverageSteps    float64       `json:"average_steps"`
	AverageDuration time.Duration `json:"average_duration"`
}

// WorkflowPerformance derives the funnel per workflow type.
func (c *Collector) WorkflowPerformance() []WorkflowTypePerformance {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]*WorkflowTypePerformance)
	steps := make(map[string]int)
	durations := make(map[string]time.Duration)
	finished := make(map[string]int)
	for _, id := range c.order {
		rec := c.records[id]
		perf, ok := byType[rec.Type]
		if !ok {
			perf = &WorkflowTypePerformance{Type: rec.Type}
			byType[rec.Type] = perf
		}
		perf.Started++
		steps[rec.Type] += rec.StepsCompleted
		switch rec.Status {
		case StatusCompleted:
			perf.Completed++
		case StatusCancelled:
			perf.Cancelled++
		case StatusError:
			perf.Errored++
		}
		if rec.Status != StatusStarted {
			finished[rec.Type]++
			durations[rec.Type] += rec.Duration
		}
	}

	out := make([]WorkflowTypePerformance, 0, len(byType))
	for name, perf := range byType {
		if n := finished[name]; n > 0 {
			perf.CompletionRate = percent(perf.Completed, n)
			perf.AverageDuration = durations[name] / time.Duration(n)
		}
		perf.AverageSteps = float64(steps[name]) / float64(perf.Started)
		out = append(out, *perf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started > out[j].Started })
	return out
}

// DailyReport summarizes one calendar day with a trend against the previous.
type DailyReport struct {
	Date           string      `json:"date"`
	Summary        DailyBucket `json:"summary"`
	CompletionRate float64     `json:"completion_rate"`
	Previous       DailyBucket `json:"previous"`
	StartedDelta   int         `json:"started_delta"`
	CompletedDelta int         `json:"completed_delta"`
}

// DailyReport builds the report for the given date from the retained buckets.
// Missing days report zero counters.
func (c *Collector) DailyReport(date time.Time) DailyReport {
	if c == nil {
		return DailyReport{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := date.Format(dayKeyLayout)
	prevKey := date.AddDate(0, 0, -1).Format(dayKeyLayout)
	report := DailyReport{
		Date:     key,
		Summary:  c.dayLocked(key),
		Previous: c.dayLocked(prevKey),
	}
	if report.Summary.Started > 0 {
		report.CompletionRate = percent(report.Summary.Completed, report.Summary.Started)
	}
	report.StartedDelta = report.Summary.Started - report.Previous.Started
	report.CompletedDelta = report.Summary.Completed - report.Previous.Completed
	return report
}

// HealthLevel is a threshold-derived categorical status.
type HealthLevel string

const (
	// HealthHealthy means the signal is within normal range.
	HealthHealthy HealthLevel = "healthy"
	// HealthWarning means the signal is degraded but serviceable.
	HealthWarning HealthLevel = "warning"
	// HealthCritical means the signal requires attention.
	HealthCritical HealthLevel = "critical"
)

// HealthIndicator is one named signal reduced to a level.
type HealthIndicator struct {
	Name  string      `json:"name"`
	Level HealthLevel `json:"level"`
	Value float64     `json:"value"`
}

// HealthReport is the composite health verdict.
type HealthReport struct {
	Overall    HealthLevel       `json:"overall"`
	Indicators []HealthIndicator `json:"indicators"`
}

// HealthIndicators maps volume, completion rate, error rate and latency to
// levels via the fixed thresholds and reduces them to one overall status.
func (c *Collector) HealthIndicators() HealthReport {
	if c == nil {
		return HealthReport{Overall: HealthHealthy}
	}
	m := c.Metrics()
	todayStarted := c.DailyReport(c.nowFunc()()).Summary.Started

	completion := rateIndicator("completion_rate", m.CompletionRate, healthyCompletionRate, warningCompletionRate, false)
	errRate := rateIndicator("error_rate", m.ErrorRate, healthyErrorRate, warningErrorRate, true)
	if m.Completed+m.Cancelled+m.Errored == 0 {
		// Nothing has finished yet; rates carry no signal.
		completion.Level = HealthHealthy
		errRate.Level = HealthHealthy
	}
	indicators := []HealthIndicator{
		volumeIndicator(todayStarted),
		completion,
		errRate,
		latencyIndicator(c.averageToolDuration()),
	}

	overall := HealthHealthy
	for _, ind := range indicators {
		if worse(ind.Level, overall) {
			overall = ind.Level
		}
	}
	return HealthReport{Overall: overall, Indicators: indicators}
}

// ToolSnapshot is the exported view of one tool's aggregates.
type ToolSnapshot struct {
	Total           int             `json:"total"`
	Successful      int             `json:"successful"`
	Failed          int             `json:"failed"`
	AverageDuration time.Duration   `json:"average_duration"`
	Recent          []ToolExecution `json:"recent,omitempty"`
}

// ExportSnapshot is the versioned structured export of the analytics state.
type ExportSnapshot struct {
	Version     int                     `json:"version"`
	GeneratedAt time.Time               `json:"generated_at"`
	Workflows   []WorkflowRecord        `json:"workflows"`
	Tools       map[string]ToolSnapshot `json:"tools"`
	Days        []DailyBucket           `json:"days"`
}

// Export copies the full analytics state into a versioned snapshot.
func (c *Collector) Export() ExportSnapshot {
	snap := ExportSnapshot{Version: ExportVersion}
	if c == nil {
		return snap
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	snap.GeneratedAt = c.now()
	snap.Workflows = make([]WorkflowRecord, 0, len(c.order))
	for _, id := range c.order {
		snap.Workflows = append(snap.Workflows, *c.records[id])
	}
	snap.Tools = make(map[string]ToolSnapshot, len(c.tools))
	for name, stats := range c.tools {
		recent := make([]ToolExecution, len(stats.recent))
		copy(recent, stats.recent)
		snap.Tools[name] = ToolSnapshot{
			Total:           stats.total,
			Successful:      stats.successful,
			Failed:          stats.failed,
			AverageDuration: stats.avg,
			Recent:          recent,
		}
	}
	snap.Days = make([]DailyBucket, 0, len(c.dayKeys))
	for _, key := range c.dayKeys {
		snap.Days = append(snap.Days, *c.days[key])
	}
	return snap
}

func (c *Collector) dayLocked(key string) DailyBucket {
	if bucket, ok := c.days[key]; ok {
		return *bucket
	}
	return DailyBucket{Date: key}
}

func (c *Collector) nowFunc() func() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Collector) averageToolDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	var n int
	for _, stats := range c.tools {
		total += stats.avg * time.Duration(stats.total)
		n += stats.total
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

func fillRecentStats(perf *ToolPerformance, recent []ToolExecution) {
	if len(recent) == 0 {
		return
	}
	durations := make([]time.Duration, 0, len(recent))
	var hours [24]int
	errorCounts := make(map[string]int)
	for _, exec := range recent {
		durations = append(durations, exec.Duration)
		hours[exec.Hour]++
		if !exec.Success && exec.ErrorCategory != "" {
			errorCounts[exec.ErrorCategory]++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	perf.MinDuration = durations[0]
	perf.MaxDuration = durations[len(durations)-1]
	perf.MedianDuration = durations[len(durations)/2]

	peak := 0
	for hour, count := range hours {
		if count > hours[peak] {
			peak = hour
		}
	}
	perf.PeakHour = peak

	best := 0
	for category, count := range errorCounts {
		if count > best {
			best = count
			perf.TopError = category
		}
	}
}

func volumeIndicator(todayStarted int) HealthIndicator {
	level := HealthHealthy
	if todayStarted < warningMinVolume {
		level = HealthWarning
	}
	return HealthIndicator{Name: "volume", Level: level, Value: float64(todayStarted)}
}

// rateIndicator maps a percentage to a level. When higherIsWorse is set the
// healthy/warning bounds are upper limits, otherwise lower limits.
func rateIndicator(name string, value, healthyBound, warningBound float64, higherIsWorse bool) HealthIndicator {
	level := HealthHealthy
	if higherIsWorse {
		switch {
		case value > warningBound:
			level = HealthCritical
		case value > healthyBound:
			level = HealthWarning
		}
	} else {
		switch {
		case value < warningBound:
			level = HealthCritical
		case value < healthyBound:
			level = HealthWarning
		}
	}
	return HealthIndicator{Name: name, Level: level, Value: value}
}

func latencyIndicator(avg time.Duration) HealthIndicator {
	level := HealthHealthy
	switch {
	case avg > warningAvgDuration:
		level = HealthCritical
	case avg > healthyAvgDuration:
		level = HealthWarning
	}
	return HealthIndicator{Name: "latency", Level: level, Value: float64(avg.Milliseconds())}
}

func worse(a, b HealthLevel) bool {
	rank := map[HealthLevel]int{HealthHealthy: 0, HealthWarning: 1, HealthCritical: 2}
	return rank[a] > rank[b]
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
