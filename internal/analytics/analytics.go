// Package analytics observes checkout workflow lifecycle and step execution
// events and derives health and performance metrics from bounded in-memory
// history. The collector is a passive observer: it never mutates workflow
// state, and every method is safe to call on a nil collector so tracking can
// be disabled without guarding call sites.
package analytics

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Retention defaults; override with the collector options.
const (
	// DefaultWorkflowCapacity bounds the workflow record ring buffer.
	DefaultWorkflowCapacity = 1000
	// DefaultRecentLimit bounds the per-tool recent execution log.
	DefaultRecentLimit = 100
	// DefaultRetentionDays bounds the day-bucketed counters.
	DefaultRetentionDays = 30
)

// dayKeyLayout formats bucket keys by calendar day.
const dayKeyLayout = "2006-01-02"

// WorkflowStatus is the lifecycle status of a tracked workflow.
type WorkflowStatus string

const (
	// StatusStarted is an in-flight workflow.
	StatusStarted WorkflowStatus = "started"
	// StatusCompleted is a workflow that reached its terminal step.
	StatusCompleted WorkflowStatus = "completed"
	// StatusCancelled is a workflow abandoned before completion.
	StatusCancelled WorkflowStatus = "cancelled"
	// StatusError is a workflow terminated by an unexpected failure.
	StatusError WorkflowStatus = "error"
)

// WorkflowRecord tracks one workflow from start to its terminal event.
type WorkflowRecord struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	Type           string         `json:"type"`
	StartTime      time.Time      `json:"start_time"`
	Status         WorkflowStatus `json:"status"`
	StepsCompleted int            `json:"steps_completed"`
	Duration       time.Duration  `json:"duration"`
	ToolsUsed      []string       `json:"tools_used,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// ToolExecution is one entry of a tool's bounded recent-execution log.
type ToolExecution struct {
	Timestamp     time.Time     `json:"timestamp"`
	Success       bool          `json:"success"`
	Duration      time.Duration `json:"duration"`
	Hour          int           `json:"hour"`
	ErrorCategory string        `json:"error_category,omitempty"`
}

// toolStats holds the online aggregates and recent log for one tool.
type toolStats struct {
	total      int
	successful int
	failed     int
	avg        time.Duration
	recent     []ToolExecution
}

// DailyBucket holds per-calendar-day workflow counters.
type DailyBucket struct {
	Date      string         `json:"date"`
	Started   int            `json:"started"`
	Completed int            `json:"completed"`
	Cancelled int            `json:"cancelled"`
	Errored   int            `json:"errored"`
	ByType    map[string]int `json:"by_type,omitempty"`
}

// ToolContext carries optional context for a tool execution event: the
// workflow the tool ran under and, on failure, the error string whose first
// colon-delimited token becomes the error category.
type ToolContext struct {
	WorkflowID string
	Error      string
}

// Collector accumulates workflow and tool events. One mutex serializes all
// access, so a collector may be shared across goroutines.
type Collector struct {
	mu sync.Mutex

	capacity      int
	recentLimit   int
	retentionDays int
	now           func() time.Time

	order   []string // workflow ids, insertion order, oldest first
	records map[string]*WorkflowRecord
	tools   map[string]*toolStats
	days    map[string]*DailyBucket
	dayKeys []string // day keys, insertion order, oldest first
}

// Option configures a Collector.
type Option func(*Collector)

// WithWorkflowCapacity overrides the workflow ring-buffer capacity.
func WithWorkflowCapacity(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithRecentLimit overrides the per-tool recent-log bound.
func WithRecentLimit(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.recentLimit = n
		}
	}
}

// WithRetentionDays overrides the day-bucket retention.
func WithRetentionDays(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.retentionDays = n
		}
	}
}

// NewCollector creates a collector with the given options applied over the
// defaults.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		capacity:      DefaultWorkflowCapacity,
		recentLimit:   DefaultRecentLimit,
		retentionDays: DefaultRetentionDays,
		now:           time.Now,
		records:       make(map[string]*WorkflowRecord),
		tools:         make(map[string]*toolStats),
		days:          make(map[string]*DailyBucket),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TrackWorkflowStart records a new workflow. Inserting past capacity evicts
// the oldest record.
func (c *Collector) TrackWorkflowStart(id, sessionID, workflowType string) {
	if c == nil || id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.records[id] = &WorkflowRecord{
		ID:        id,
		SessionID: sessionID,
		Type:      workflowType,
		StartTime: now,
		Status:    StatusStarted,
	}
	c.order = append(c.order, id)
	for len(c.order) > c.capacity {
		evicted := c.order[0]
		c.order = c.order[1:]
		delete(c.records, evicted)
	}
	c.bumpDayLocked(now, workflowType, StatusStarted)
	slog.Debug("analytics workflow started", "workflowID", id, "type", workflowType)
}

// TrackWorkflowCompletion marks a workflow completed.
func (c *Collector) TrackWorkflowCompletion(id string, stepsCompleted int) {
	c.finish(id, StatusCompleted, stepsCompleted, "")
}

// TrackWorkflowCancellation marks a workflow cancelled.
func (c *Collector) TrackWorkflowCancellation(id string, stepsCompleted int) {
	c.finish(id, StatusCancelled, stepsCompleted, "")
}

// TrackWorkflowError marks a workflow terminated by an unexpected failure.
func (c *Collector) TrackWorkflowError(id string, errMsg string) {
	c.finish(id, StatusError, 0, errMsg)
}

func (c *Collector) finish(id string, status WorkflowStatus, stepsCompleted int, errMsg string) {
	if c == nil || id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		slog.Debug("analytics terminal event for unknown workflow", "workflowID", id, "status", status)
		return
	}
	if rec.Status != StatusStarted {
		// Records mutate exactly once on their terminal event.
		return
	}
	now := c.now()
	rec.Status = status
	rec.Duration = now.Sub(rec.StartTime)
	if stepsCompleted > rec.StepsCompleted {
		rec.StepsCompleted = stepsCompleted
	}
	rec.LastError = errMsg
	c.bumpDayLocked(now, rec.Type, status)
	slog.Debug("analytics workflow finished", "workflowID", id, "status", status, "duration", rec.Duration)
}

// TrackToolExecution updates the per-tool online aggregates and bounded
// recent log, and appends the tool to its workflow's tools-used list.
func (c *Collector) TrackToolExecution(tool string, success bool, duration time.Duration, tc ToolContext) {
	if c == nil || tool == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.tools[tool]
	if !ok {
		stats = &toolStats{}
		c.tools[tool] = stats
	}
	stats.total++
	if success {
		stats.successful++
	} else {
		stats.failed++
	}
	// Running average without storing every duration.
	stats.avg += (duration - stats.avg) / time.Duration(stats.total)

	now := c.now()
	exec := ToolExecution{
		Timestamp: now,
		Success:   success,
		Duration:  duration,
		Hour:      now.Hour(),
	}
	if !success {
		exec.ErrorCategory = errorCategory(tc.Error)
	}
	stats.recent = append(stats.recent, exec)
	for len(stats.recent) > c.recentLimit {
		stats.recent = stats.recent[1:]
	}

	if tc.WorkflowID != "" {
		if rec, ok := c.records[tc.WorkflowID]; ok {
			rec.ToolsUsed = appendUnique(rec.ToolsUsed, tool)
			if rec.Status == StatusStarted {
				rec.StepsCompleted++
			}
		}
	}
}

// bumpDayLocked increments the calendar-day bucket for the event and evicts
// the oldest days past retention. Caller holds c.mu.
func (c *Collector) bumpDayLocked(at time.Time, workflowType string, status WorkflowStatus) {
	key := at.Format(dayKeyLayout)
	bucket, ok := c.days[key]
	if !ok {
		bucket = &DailyBucket{Date: key, ByType: make(map[string]int)}
		c.days[key] = bucket
		c.dayKeys = append(c.dayKeys, key)
		sort.Strings(c.dayKeys)
		for len(c.dayKeys) > c.retentionDays {
			oldest := c.dayKeys[0]
			c.dayKeys = c.dayKeys[1:]
			delete(c.days, oldest)
		}
	}
	switch status {
	case StatusStarted:
		bucket.Started++
		bucket.ByType[workflowType]++
	case StatusCompleted:
		bucket.Completed++
	case StatusCancelled:
		bucket.Cancelled++
	case StatusError:
		bucket.Errored++
	}
}

// errorCategory extracts the first colon-delimited token of an error string.
func errorCategory(errMsg string) string {
	if errMsg == "" {
		return "unknown"
	}
	category, _, _ := strings.Cut(errMsg, ":")
	return strings.TrimSpace(category)
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
