// Package errs implements the error-kind taxonomy from SPEC_FULL.md §7,
// wrapped with github.com/pkg/errors the way
// _examples/Elvenson-alphabeth's search package wraps its own errors
// throughout (errors.New/errors.Wrap/errors.WithMessage), plus a
// hashicorp/go-multierror accumulator for the non-fatal kinds a search can
// collect without aborting.
package errs

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Sentinel errors for each disposition in SPEC_FULL.md §7. Wrap one of
// these with errors.Wrap to attach position/node context; callers compare
// with errors.Is or errors.Cause.
var (
	// ErrExpansionRace: lost CAS, recovered silently.
	ErrExpansionRace = errors.New("mctschess: expansion race lost, using winner's result")
	// ErrCacheContention: chunk contended, recovered silently.
	ErrCacheContention = errors.New("mctschess: prediction cache chunk contended")
	// ErrPredictorUnavailable: falls back to the uniform predictor.
	ErrPredictorUnavailable = errors.New("mctschess: predictor unavailable, falling back to uniform")
	// ErrPredictorError: fatal, bad output shape from the predictor.
	ErrPredictorError = errors.New("mctschess: predictor returned malformed output")
	// ErrIllegalPosition: fatal, position collaborator contract break.
	ErrIllegalPosition = errors.New("mctschess: illegal position encountered during search")
	// ErrStopRequested: normal termination, not a failure.
	ErrStopRequested = errors.New("mctschess: stop requested")
	// ErrTablebaseProbeFailed: soft, treated as no tablebase info.
	ErrTablebaseProbeFailed = errors.New("mctschess: tablebase probe failed")
)

// IsFatal reports whether err's disposition (per §7) should abort the
// search entirely, as opposed to being recovered/soft/normal.
func IsFatal(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrPredictorError || cause == ErrIllegalPosition
}

// Accumulator collects the non-fatal error kinds
// (ExpansionRace/CacheContention/TablebaseProbeFailed) encountered during
// one search, for optional post-mortem inspection without aborting,
// grounded on Elvenson-alphabeth's use of hashicorp/go-multierror to
// accumulate per-worker failures.
type Accumulator struct {
	err *multierror.Error
}

// Add records an error. Fatal errors still propagate immediately via a
// normal return; selfplay.Worker also records its wrapped PredictorError
// here before returning it.
func (a *Accumulator) Add(err error) {
	a.err = multierror.Append(a.err, err)
}

// Err returns the accumulated multierror, or nil if nothing was recorded.
func (a *Accumulator) Err() error {
	if a.err == nil {
		return nil
	}
	return a.err.ErrorOrNil()
}

// Len reports how many errors have been accumulated.
func (a *Accumulator) Len() int {
	if a.err == nil {
		return 0
	}
	return len(a.err.Errors)
}
