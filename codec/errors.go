// Package codec builds, per registered message type, the four byte-level
// procedures a bag reader or writer needs: ROS1<->CDR bit conversion and
// CDR/ROS1 value-level (de)serialization.
package codec

import "fmt"

// SerdeError reports a malformed buffer or a value that cannot be encoded
// under its type's descriptor (wrong array length, truncated input, bad CDR
// header).
type SerdeError struct {
	Reason string
}

func (e *SerdeError) Error() string {
	return fmt.Sprintf("serde: %s", e.Reason)
}

func newSerdeError(format string, args ...interface{}) error {
	return &SerdeError{Reason: fmt.Sprintf(format, args...)}
}
