package protocol

import "errors"

// ErrDecode is matched by every error returned from Decode and DecodeFrame.
var ErrDecode = errors.New("decode error")

// DecodeError describes an inbound frame that does not conform to the wire
// format. The previous state must be kept when one is returned.
type DecodeError struct {
	Reason string
	Err    error
}

func newDecodeError(reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "failed to decode frame: " + e.Reason + ": " + e.Err.Error()
	}
	return "failed to decode frame: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports ErrDecode as a match so callers can use errors.Is.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
