package multipart

import "fmt"

// ProtocolErrorKind classifies multipart framing failures
type ProtocolErrorKind int

const (
	MissingBoundary ProtocolErrorKind = iota
	UnexpectedState
	Truncated
	MalformedHeader
	MissingTerminator
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case MissingBoundary:
		return "missing-boundary"
	case UnexpectedState:
		return "unexpected-state"
	case Truncated:
		return "truncated"
	case MalformedHeader:
		return "malformed-header"
	case MissingTerminator:
		return "missing-terminator"
	default:
		return "unknown"
	}
}

// ProtocolError reports a malformed multipart/related body. A body that fails
// to frame is never partially recovered.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("multipart: %s: %s", e.Kind, e.Msg)
}

func newProtocolError(kind ProtocolErrorKind, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
