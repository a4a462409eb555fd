package protocol

import "fmt"

// ProtocolViolation reports that a message was illegal in the state that
// received it (spec.md §7 error taxonomy). It is carried by the Fail*
// effect constructors and surfaces at the exchange boundary.
type ProtocolViolation struct {
	State   string
	Message string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in state %s: %s", e.State, e.Message)
}

// violation is a small constructor helper to keep Step bodies terse.
func violation(state, format string, args ...any) *ProtocolViolation {
	return &ProtocolViolation{State: state, Message: fmt.Sprintf(format, args...)}
}
