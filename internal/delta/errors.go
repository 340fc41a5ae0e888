package delta

import "fmt"

// MalformedPayloadError indicates the payload failed structural
// validation before any transformation was attempted.
type MalformedPayloadError struct {
	// Reason describes what part of the payload is malformed
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed delta payload: %s", e.Reason)
}

// InputLengthError indicates the input buffer does not have the length
// the payload was built for. Applying the payload anyway would be
// undefined, so the engine refuses up front.
type InputLengthError struct {
	// Declared is the input length the payload header declares
	Declared int
	// Actual is the length of the buffer that was supplied
	Actual int
}

func (e *InputLengthError) Error() string {
	return fmt.Sprintf("delta payload expects %d input bytes, got %d", e.Declared, e.Actual)
}

// LengthMismatchError indicates the transformation produced output of a
// different length than the payload header declares.
type LengthMismatchError struct {
	// Declared is the output length the payload header declares
	Declared int
	// Actual is the length of the produced output
	Actual int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("delta output is %d bytes, payload declares %d", e.Actual, e.Declared)
}
