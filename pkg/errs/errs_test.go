package errs

import (
	"testing"

	"github.com/pkg/errors"
)

func TestIsFatalClassifiesDispositions(t *testing.T) {
	fatalCases := []error{ErrPredictorError, ErrIllegalPosition, errors.Wrap(ErrPredictorError, "bad shape")}
	for _, err := range fatalCases {
		if !IsFatal(err) {
			t.Errorf("expected %v to be classified fatal", err)
		}
	}

	softCases := []error{ErrExpansionRace, ErrCacheContention, ErrStopRequested, ErrTablebaseProbeFailed}
	for _, err := range softCases {
		if IsFatal(err) {
			t.Errorf("expected %v to not be classified fatal", err)
		}
	}
}

func TestAccumulatorCollectsAndReports(t *testing.T) {
	var acc Accumulator
	if acc.Err() != nil {
		t.Fatal("expected nil error from an empty accumulator")
	}

	acc.Add(ErrExpansionRace)
	acc.Add(ErrCacheContention)

	if acc.Len() != 2 {
		t.Fatalf("expected 2 accumulated errors, got %d", acc.Len())
	}
	if acc.Err() == nil {
		t.Fatal("expected a non-nil combined error after adding failures")
	}
}
