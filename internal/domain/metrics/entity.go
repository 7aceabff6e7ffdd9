// internal/domain/metrics/entity.go
package metrics

import (
	"fmt"
	"time"
)

// TimeRange selects the aggregation window.
type TimeRange string

const (
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
	RangeYear    TimeRange = "year"
)

// rangeDays is the fixed day-offset table for each range.
var rangeDays = map[TimeRange]int{
	RangeWeek:    7,
	RangeMonth:   30,
	RangeQuarter: 90,
	RangeYear:    365,
}

var rangeLabels = map[TimeRange]string{
	RangeWeek:    "Last 7 days",
	RangeMonth:   "Last 30 days",
	RangeQuarter: "Last 90 days",
	RangeYear:    "Last 365 days",
}

// ParseTimeRange validates a raw range string.
func ParseTimeRange(s string) (TimeRange, error) {
	r := TimeRange(s)
	if _, ok := rangeDays[r]; !ok {
		return "", fmt.Errorf("unknown time range %q", s)
	}
	return r, nil
}

// Days returns the fixed day offset for the range.
func (r TimeRange) Days() int {
	return rangeDays[r]
}

// Label returns the display label for the range.
func (r TimeRange) Label() string {
	return rangeLabels[r]
}

// PeriodStart resolves the window start: now minus the fixed day offset,
// truncated to start of day in now's location.
func (r TimeRange) PeriodStart(now time.Time) time.Time {
	start := now.AddDate(0, 0, -rangeDays[r])
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
}

// Category identifies one independent event source feeding the aggregator.
type Category string

const (
	CategoryDocease    Category = "docease"    // document-generation log
	CategorySignease   Category = "signease"   // per-tool signature activity log
	CategorySignatures Category = "signatures" // legacy signature log
	CategorySessions   Category = "sessions"   // presence-derived activity
)

// Categories lists every event source in a stable order.
func Categories() []Category {
	return []Category{CategoryDocease, CategorySignease, CategorySignatures, CategorySessions}
}

// Scope is the data-visibility boundary applied to every category query.
// Restricted scopes pin the query to one owner; some sources key on id,
// others on email, so both are carried.
type Scope struct {
	Restricted bool   `json:"restricted"`
	OwnerID    string `json:"owner_id,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
}

// Query is the full parameter set a snapshot is a pure function of.
type Query struct {
	Scope     Scope     `json:"scope"`
	TimeRange TimeRange `json:"time_range"`
}

// TypeStat is one slice of the document-type breakdown.
type TypeStat struct {
	Label      string `json:"label"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// DayStat is one point of the two-series daily chart.
type DayStat struct {
	DayLabel string `json:"day_label"`
	Docease  int    `json:"docease"`
	Signease int    `json:"signease"`
}

// Snapshot is a recomputed-on-demand metrics view. Never persisted; a pure
// function of (Query, event-store contents) apart from the clock.
type Snapshot struct {
	Query                Query            `json:"query"`
	PeriodLabel          string           `json:"period_label"`
	Counts               map[Category]int `json:"counts"`
	TypeBreakdown        []TypeStat       `json:"type_breakdown"`
	DailySeries          []DayStat        `json:"daily_series"`
	ActivePrincipalCount int              `json:"active_principal_count"`
	// DegradedCategories lists sources that failed and were zeroed instead
	// of aborting the snapshot.
	DegradedCategories []Category `json:"degraded_categories,omitempty"`
	ComputedAt         time.Time  `json:"computed_at"`
}

// Invalidation is a typed change-notification signal for one category.
type Invalidation struct {
	Category Category
	At       time.Time
}
