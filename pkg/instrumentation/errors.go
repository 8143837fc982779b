package instrumentation

import "errors"

// Failure kinds logged at the hook boundary. None of them reaches the
// instrumented application.
var (
	// ErrSetupFailure means the storage directory or the path-code registry
	// could not be prepared. Capture stops for the rest of the process.
	ErrSetupFailure = errors.New("trace setup failed")

	// ErrSerialization means a value could not be rendered. The value is
	// dropped and its type falls back to an empty placeholder.
	ErrSerialization = errors.New("serialization failed")

	// ErrBudgetExhausted means a target reached its invocation cap.
	ErrBudgetExhausted = errors.New("capture budget exhausted")

	// ErrSizeLimitExceeded means one of a target's object logs reached the
	// size cap.
	ErrSizeLimitExceeded = errors.New("object log size limit exceeded")

	// ErrIOWrite means a record or the invocation count could not be written.
	ErrIOWrite = errors.New("trace write failed")
)
