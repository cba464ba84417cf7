// Package attemptlog records every send attempt as an append-only, durable
// audit trail queryable for statistics.
package attemptlog

import (
	"context"
	"time"
)

// Outcome tags for a recorded attempt.
const (
	OutcomeSent   = "Sent"
	OutcomeFailed = "Failed"
)

// Record is one attempt's outcome. Records are append-only: never mutated
// or deleted after creation.
type Record struct {
	Timestamp time.Time
	BatchID   string

	// Ordinal is the row's position in its batch, starting at 0. Together
	// with append order it preserves user-visible reporting order.
	Ordinal   int
	Recipient string
	Company   string
	Subject   string
	Outcome   string
	Message   string
}

// Filter narrows a query. Zero values match everything.
type Filter struct {
	Since   time.Time
	Until   time.Time
	Outcome string

	// Limit keeps only the most recent N matches, still in append order.
	Limit int
}

func (f Filter) matches(rec Record) bool {
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.Timestamp.After(f.Until) {
		return false
	}
	if f.Outcome != "" && rec.Outcome != f.Outcome {
		return false
	}
	return true
}

// Log is the audit sink injected into the batch orchestrator. Append must
// persist the whole record atomically and preserve append order; Query
// returns records in that order.
type Log interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, f Filter) ([]Record, error)
}

// Stats aggregates attempt outcomes for the statistics boundary.
type Stats struct {
	TotalAttempts int      `json:"total_attempts"`
	Sent          int      `json:"successful_sends"`
	Failed        int      `json:"failed_sends"`
	Recent        []Record `json:"-"`
}

// Summarize computes aggregate counts with a single scan over the matching
// records and keeps the last ten as Recent.
func Summarize(ctx context.Context, log Log, f Filter) (Stats, error) {
	f.Limit = 0
	recs, err := log.Query(ctx, f)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, rec := range recs {
		s.TotalAttempts++
		if rec.Outcome == OutcomeSent {
			s.Sent++
		} else {
			s.Failed++
		}
	}

	const recentCount = 10
	s.Recent = append(s.Recent, lastN(recs, recentCount)...)
	return s, nil
}

func lastN(recs []Record, n int) []Record {
	if n <= 0 || len(recs) <= n {
		return recs
	}
	return recs[len(recs)-n:]
}
