package core

// CoreError classifies failures raised above the network layer
type CoreError uint8

const (
	// CommandError reports a remote command that could not be executed
	CommandError CoreError = iota + 1
	// PatternError reports an invalid pattern engine operation
	PatternError
)

func (e CoreError) Error() string {
	switch e {
	case CommandError:
		return "command error"
	case PatternError:
		return "pattern error"
	}
	return "core error " + Itoa(int(e))
}

// commandFailure ties a failed command to its id and underlying cause
type commandFailure struct {
	id    uint16
	name  string
	cause error
}

func (e *commandFailure) Error() string {
	msg := "command " + Itoa(int(e.id))
	if e.name != "" {
		msg += " (" + e.name + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes both CommandError and the cause to errors.Is / errors.As
func (e *commandFailure) Unwrap() []error {
	if e.cause == nil {
		return []error{CommandError}
	}
	return []error{CommandError, e.cause}
}
