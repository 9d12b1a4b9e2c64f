// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package batch analyzes many inputs concurrently, collecting a result for
// each of them.
package batch

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/f-secure-foundry/rkh-reader/internal/rkh"
	"github.com/f-secure-foundry/rkh-reader/internal/source"
)

// Result represents the outcome of a single input analysis, exactly one of
// Report and Err is set.
type Result struct {
	Name   string
	Report *rkh.Report
	Err    error
}

// Runner analyzes inputs with a bounded number of workers.
type Runner struct {
	Analyzer *rkh.Analyzer
	// Jobs bounds concurrent analyses, defaults to the number of CPUs.
	Jobs int

	Log logrus.FieldLogger
}

// Run analyzes every input and returns results in input order.
//
// A failing input does not stop the batch, its error is recorded in its
// result. The returned error is only set when ctx is done before all inputs
// have been analyzed, in which case the results of the pending inputs carry
// the context error.
func (r *Runner) Run(ctx context.Context, inputs []source.Input) ([]Result, error) {
	jobs := r.Jobs

	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	results := make([]Result, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i := range inputs {
		i := i

		results[i].Name = inputs[i].Name

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return err
			}

			results[i].Report, results[i].Err = r.analyze(inputs[i])

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// inputs never started after cancellation
		for i := range results {
			if results[i].Report == nil && results[i].Err == nil {
				results[i].Err = err
			}
		}

		return results, errors.Wrap(err, "batch interrupted")
	}

	return results, nil
}

func (r *Runner) analyze(in source.Input) (*rkh.Report, error) {
	buf, err := in.Load()

	if err != nil {
		return nil, errors.Wrap(err, in.Name)
	}

	report, err := r.Analyzer.Analyze(in.Name, buf)

	if err != nil && r.Log != nil {
		r.Log.WithField("kind", rkh.Kind(err)).Debug(err)
	}

	return report, err
}
