// Package app wires the pipeline pieces together for one-shot CLI runs.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/outboundkit/mailmerge/internal/attemptlog"
	"github.com/outboundkit/mailmerge/internal/batch"
	"github.com/outboundkit/mailmerge/internal/contacts"
)

// LocalOptions configures a single local batch run.
type LocalOptions struct {
	// InputPath names the contact CSV to process.
	InputPath string

	// OutputPath, when non-empty, receives a CSV report of every attempt.
	OutputPath string

	// Template is the prompt template with {Placeholder} markers.
	Template string
}

// RunLocal reads a local contact CSV, runs the batch, and optionally writes
// a per-row outcome report. The attempt log inside the runner is written
// either way.
func RunLocal(ctx context.Context, runner *batch.Runner, opts LocalOptions) (batch.Result, error) {
	inF, err := os.Open(opts.InputPath)
	if err != nil {
		return batch.Result{}, err
	}
	defer func() {
		_ = inF.Close()
	}()

	rows, err := contacts.ReadRows(inF)
	if err != nil {
		return batch.Result{}, fmt.Errorf("read contacts from %s: %w", opts.InputPath, err)
	}

	res, err := runner.Run(ctx, rows, opts.Template)
	if err != nil {
		return res, err
	}

	if opts.OutputPath != "" {
		outF, err := os.Create(opts.OutputPath)
		if err != nil {
			return res, err
		}
		defer func() {
			_ = outF.Close()
		}()
		if err := attemptlog.WriteCSV(outF, res.Attempts); err != nil {
			return res, err
		}
		if err := outF.Close(); err != nil {
			return res, err
		}
	}
	return res, nil
}
