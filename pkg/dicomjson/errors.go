package dicomjson

import "fmt"

// CodecErrorKind classifies DICOM JSON conversion failures
type CodecErrorKind int

const (
	UnsupportedValue CodecErrorKind = iota
	MissingField
	InvalidValue
	InvalidTag
)

func (k CodecErrorKind) String() string {
	switch k {
	case UnsupportedValue:
		return "unsupported-value"
	case MissingField:
		return "missing-field"
	case InvalidValue:
		return "invalid-value"
	case InvalidTag:
		return "invalid-tag"
	default:
		return "unknown"
	}
}

// CodecError identifies the attribute whose value could not be converted.
type CodecError struct {
	Tag  string
	VR   string
	Kind CodecErrorKind
	Msg  string
}

func (e *CodecError) Error() string {
	if e.VR == "" {
		return fmt.Sprintf("dicomjson: %s: %s: %s", e.Tag, e.Kind, e.Msg)
	}
	return fmt.Sprintf("dicomjson: %s (%s): %s: %s", e.Tag, e.VR, e.Kind, e.Msg)
}

func codecError(key, vr string, kind CodecErrorKind, format string, args ...interface{}) *CodecError {
	return &CodecError{Tag: key, VR: vr, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
