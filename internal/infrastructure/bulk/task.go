package bulk

import "context"

// Call performs the remote write for one payload. Errors and panics raised by
// a Call are item failures and are delivered to the task's OnFailure hook.
type Call[P, R any] func(ctx context.Context, payload P) (R, error)

// Task is one record's submission unit.
//
// Hooks run on executor goroutines and may be called concurrently for
// different tasks. A hook returning an error (or panicking) is fatal: the
// executor stops launching tasks and Run returns the error.
type Task[P, R any] struct {
	// Name labels the task in spans and logs
	Name    string
	Payload P

	// Serialize prepares the payload for submission. Returning ok=false
	// skips the remote call; any progress tick for the skip is the hook's
	// responsibility.
	Serialize func(ctx context.Context, payload P) (out P, ok bool, err error)

	// OnSuccess receives the response and the serialized payload
	OnSuccess func(ctx context.Context, response R, payload P) error

	// OnFailure receives the call error and the serialized payload
	OnFailure func(ctx context.Context, err error, payload P) error
}
