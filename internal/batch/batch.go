// Package batch drives the per-row outreach loop: normalize, compose,
// dispatch, record. One row's failure never halts the batch.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/outboundkit/mailmerge/internal/attemptlog"
	"github.com/outboundkit/mailmerge/internal/contacts"
	"github.com/outboundkit/mailmerge/internal/dispatch"
	"github.com/outboundkit/mailmerge/internal/generate"
)

// Result aggregates one batch run. Attempts holds every attempt record in
// input order; Attempted always equals the number of input rows.
type Result struct {
	BatchID   string
	Attempted int
	Sent      int
	Failed    int
	Attempts  []attemptlog.Record
}

type Options struct {
	// RateLimitRPS paces transport calls across the batch. Providers
	// rate-limit senders, so a gap between sends is usually wanted.
	// Set to <=0 to disable.
	RateLimitRPS float64

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Runner holds the collaborators for batch runs. The attempt log is
// injected rather than opened internally so callers control durability.
type Runner struct {
	norm *contacts.Normalizer
	gen  generate.Generator
	tr   dispatch.Transport
	log  attemptlog.Log
	opts Options
}

func NewRunner(norm *contacts.Normalizer, gen generate.Generator, tr dispatch.Transport, log attemptlog.Log, opts Options) *Runner {
	if norm == nil {
		norm = contacts.NewNormalizer(nil)
	}
	return &Runner{
		norm: norm,
		gen:  gen,
		tr:   tr,
		log:  log,
		opts: opts.withDefaults(),
	}
}

// Run processes rows strictly sequentially, in input order. Every row
// yields exactly one attempt record, even on total failure; counts are
// computed by a single scan once the row sequence is exhausted. Only a
// cancelled context or a failed log append aborts the batch, and the
// partial Result is still returned alongside the error.
func (r *Runner) Run(ctx context.Context, rows []contacts.RawRow, template string) (Result, error) {
	res := Result{BatchID: uuid.NewString()}
	logger := slog.Default().With("batch_id", res.BatchID)
	logger.Info("batch_start", "rows", len(rows))
	start := time.Now()

	var limiter *rate.Limiter
	if r.opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.RateLimitRPS), 1)
	}

	for i, raw := range rows {
		// Rows are isolated units, so cancellation is checked between them.
		if err := ctx.Err(); err != nil {
			return finalize(res), err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return finalize(res), err
			}
		}

		rec := r.processRow(ctx, res.BatchID, i, raw, template)
		if err := r.log.Append(ctx, rec); err != nil {
			// Losing audit records is batch-fatal; per-row errors are not.
			return finalize(res), fmt.Errorf("append attempt log: %w", err)
		}
		res.Attempts = append(res.Attempts, rec)
		logger.Info("row_processed",
			"ordinal", i,
			"recipient", rec.Recipient,
			"outcome", rec.Outcome,
		)
	}

	res = finalize(res)
	logger.Info("batch_complete",
		"attempted", res.Attempted,
		"sent", res.Sent,
		"failed", res.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// processRow runs one row through the pipeline. Any panic escaping a
// collaborator is recovered at this boundary and converted into a failed
// record so the batch continues with the next row.
func (r *Runner) processRow(ctx context.Context, batchID string, ordinal int, raw contacts.RawRow, template string) (rec attemptlog.Record) {
	rec = attemptlog.Record{
		Timestamp: r.opts.Now(),
		BatchID:   batchID,
		Ordinal:   ordinal,
		Outcome:   attemptlog.OutcomeFailed,
	}
	defer func() {
		if p := recover(); p != nil {
			rec.Outcome = attemptlog.OutcomeFailed
			rec.Message = fmt.Sprintf("internal error: %v", p)
		}
	}()

	record := r.norm.Normalize(raw)
	rec.Recipient = record.Email
	rec.Company = record.Company
	rec.Subject = SubjectFor(record)

	gres := generate.Compose(ctx, r.gen, record, template)

	out := dispatch.Dispatch(ctx, r.tr, record.Email, rec.Subject, gres.Body)
	if !out.Sent {
		rec.Message = out.Reason
		return rec
	}

	rec.Outcome = attemptlog.OutcomeSent
	if gres.Fallback {
		rec.Message = "delivered with fallback content: " + gres.Reason
	} else {
		rec.Message = "delivered"
	}
	return rec
}

// SubjectFor builds the per-contact subject line.
func SubjectFor(record contacts.Record) string {
	return "Regarding Your Business, " + record.Company
}

func finalize(res Result) Result {
	res.Attempted = 0
	res.Sent = 0
	res.Failed = 0
	for _, rec := range res.Attempts {
		res.Attempted++
		if rec.Outcome == attemptlog.OutcomeSent {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	return res
}
