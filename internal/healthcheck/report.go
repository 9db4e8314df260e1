package healthcheck

import (
	"context"
	"time"
)

// Report is the aggregated result of all registered checkers.
type Report struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []CheckResult `json:"checks"`
}

// Aggregator runs a fixed set of checkers.
type Aggregator struct {
	checkers []Checker
	now      func() time.Time
}

// NewAggregator creates an Aggregator. Nil checkers are skipped.
func NewAggregator(checkers ...Checker) *Aggregator {
	filtered := make([]Checker, 0, len(checkers))
	for _, c := range checkers {
		if c != nil {
			filtered = append(filtered, c)
		}
	}
	return &Aggregator{checkers: filtered, now: time.Now}
}

// Run evaluates every checker in registration order. Status is the worst
// status seen: error over warn over ok.
func (a *Aggregator) Run(ctx context.Context) Report {
	report := Report{Status: StatusOK, Checks: []CheckResult{}}
	if a == nil {
		report.Timestamp = time.Now().UTC()
		return report
	}
	report.Timestamp = a.now().UTC()
	for _, checker := range a.checkers {
		for _, item := range checker.ListChecks(ctx) {
			report.Checks = append(report.Checks, item)
			report.Status = worse(report.Status, item.Status)
		}
	}
	return report
}

func severity(status string) int {
	switch status {
	case StatusError:
		return 3
	case StatusWarn, StatusUnknown:
		return 2
	default:
		return 1
	}
}

func worse(a, b string) string {
	if severity(b) > severity(a) {
		return b
	}
	return a
}
