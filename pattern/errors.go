package pattern

import "hexcell/core"

// Error reports an invalid pattern engine operation. Every value also
// matches core.PatternError under errors.Is.
type Error uint8

const (
	InvalidPatternError Error = iota + 1
	PatternSizeError
	PatternCountError
	InvalidCursorError
)

var errorNames = [...]string{
	InvalidPatternError: "invalid pattern",
	PatternSizeError:    "pattern size",
	PatternCountError:   "pattern count",
	InvalidCursorError:  "invalid cursor",
}

func (e Error) Error() string {
	if int(e) < len(errorNames) && errorNames[e] != "" {
		return "pattern: " + errorNames[e]
	}
	return "pattern: error " + core.Itoa(int(e))
}

// Unwrap links the error to its core category
func (e Error) Unwrap() error {
	return core.PatternError
}
