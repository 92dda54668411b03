package audio

import (
	"errors"
	"fmt"
)

// ErrorCode is the class of a playback failure. Its value is the negative
// status reported for the failure.
type ErrorCode int

const (
	// ErrStorage is returned when opening, reading or closing a segment
	// fails.
	ErrStorage ErrorCode = -5

	// ErrCorruptStream is returned when the stream does not follow the
	// expected container format.
	ErrCorruptStream ErrorCode = -74

	// ErrDecode is returned when a frame fails to decode or decodes to an
	// unexpected size.
	ErrDecode ErrorCode = -22

	// ErrOverflow is returned when committing more data than was claimed or
	// writing to a ring buffer with no space.
	ErrOverflow ErrorCode = -105

	// ErrSlotIdentity is returned when the output reports completion of an
	// unknown slot.
	ErrSlotIdentity ErrorCode = -71

	// statusUnknown is the status of errors that do not carry a code.
	statusUnknown = -1
)

func (ec ErrorCode) Error() string {
	switch ec {
	case ErrStorage:
		return "storage error"
	case ErrCorruptStream:
		return "corrupt stream"
	case ErrDecode:
		return "decode error"
	case ErrOverflow:
		return "buffer overflow"
	case ErrSlotIdentity:
		return "unknown output slot"
	default:
		return fmt.Sprintf("unknown error code %d", int(ec))
	}
}

type codedError struct {
	code  ErrorCode
	msg   string
	inner error
}

func (ce codedError) Error() string {
	switch {
	case ce.msg != "" && ce.inner != nil:
		return fmt.Sprintf("%s: %s: %v", ce.code.Error(), ce.msg, ce.inner)
	case ce.msg != "":
		return fmt.Sprintf("%s: %s", ce.code.Error(), ce.msg)
	case ce.inner != nil:
		return fmt.Sprintf("%s: %v", ce.code.Error(), ce.inner)
	default:
		return ce.code.Error()
	}
}

// Unwrap returns both the code and the inner error, so that errors.Is works
// against either.
func (ce codedError) Unwrap() []error {
	if ce.inner != nil {
		return []error{ce.code, ce.inner}
	}
	return []error{ce.code}
}

func (ce codedError) As(target interface{}) bool {
	switch t := target.(type) {
	case *codedError:
		*t = ce
		return true

	case *ErrorCode:
		*t = ce.code
		return true
	}

	return false
}

func makeCodedError(code ErrorCode, inner error) codedError {
	return codedError{code: code, inner: inner}
}

func codedErrorf(code ErrorCode, inner error, format string, args ...interface{}) codedError {
	return codedError{code: code, msg: fmt.Sprintf(format, args...), inner: inner}
}

// StatusCode returns the negative status for err. It returns zero for a nil
// error and -1 for errors that are not classified by an ErrorCode.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return int(code)
	}
	return statusUnknown
}

var (
	errQueueFull         = errors.New("playback request queue is full")
	errNotPrimed         = errors.New("not enough data to prime output slots")
	errNotMixMode        = errors.New("player is not in mix mode")
	errNoActiveSession   = errors.New("no active playback session")
	errMixBufferTooSmall = errors.New("mix buffer is smaller than one frame")
)
