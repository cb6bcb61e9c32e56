package migrationapp

import (
	"context"
	"errors"

	"github.com/contentstack/cli-sub008/internal/infrastructure/cma"
	"github.com/contentstack/cli-sub008/internal/infrastructure/mapper"
)

// Outcome is how a failed remote call is treated
type Outcome int

const (
	// OutcomeFailure records the item in the failure ledger; the module continues
	OutcomeFailure Outcome = iota
	// OutcomeSkip treats the item as already present on the target
	OutcomeSkip
	// OutcomeFatal stops the phase
	OutcomeFatal
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeSkip:
		return "skip"
	case OutcomeFatal:
		return "fatal"
	default:
		return "failure"
	}
}

// Classify maps a remote call error to its outcome. Conflicts are skips,
// context errors are fatal and everything else is an item failure.
func Classify(err error) Outcome {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeFatal
	case errors.As(err, new(*fatalError)):
		return OutcomeFatal
	case cma.IsConflict(err):
		return OutcomeSkip
	default:
		return OutcomeFailure
	}
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as fatal for the phase when returned from a Prepare hook
// or a remote call.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// failureFor builds the failure ledger entry of an item
func failureFor(uid, name, phase string, err error) mapper.Failure {
	f := mapper.Failure{UID: uid, Name: name, Phase: phase}
	if apiErr, ok := cma.AsAPIError(err); ok {
		f.Status = apiErr.Status
		f.Message = apiErr.Message
		f.Errors = apiErr.Errors
		if f.Message == "" {
			f.Message = apiErr.StatusText
		}
		return f
	}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

func failureMessage(f mapper.Failure) string {
	if f.Message == "" {
		return "unknown error"
	}
	return f.Message
}
