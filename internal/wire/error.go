package wire

import "fmt"

// FramingError is a fatal, session-terminating error in message framing:
// wrong magic, bad checksum, an over-long declared payload, or a non-ASCII
// command field.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("wire: framing error: %s", e.Reason)
}

func newFramingError(format string, args ...any) error {
	return &FramingError{Reason: fmt.Sprintf(format, args...)}
}

// IsFramingError reports whether err is a fatal framing error that should
// terminate the session rather than be retried in place.
func IsFramingError(err error) bool {
	_, ok := err.(*FramingError)
	return ok
}
