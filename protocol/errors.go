package protocol

// PhyError reports a physical link failure
type PhyError uint8

const (
	UartError PhyError = iota + 1
	SPIError
	DMAError
	NotConnected
	InvalidPort
	LocalResourceBusy
	RemoteResourceBusy
	InvalidSignal
)

var phyErrorNames = [...]string{
	UartError:          "uart error",
	SPIError:           "spi error",
	DMAError:           "dma error",
	NotConnected:       "not connected",
	InvalidPort:        "invalid port",
	LocalResourceBusy:  "local resource busy",
	RemoteResourceBusy: "remote resource busy",
	InvalidSignal:      "invalid signal",
}

func (e PhyError) Error() string {
	if int(e) < len(phyErrorNames) && phyErrorNames[e] != "" {
		return "phy: " + phyErrorNames[e]
	}
	return "phy: unknown error"
}

// NetworkError reports a failure at the messaging layer
type NetworkError uint8

const (
	InvalidAddress NetworkError = iota + 1
	DestinationUnreachable
	ChecksumFailure
	Timeout
	InvalidConfiguration
	InvalidMessageContents
)

var networkErrorNames = [...]string{
	InvalidAddress:         "invalid address",
	DestinationUnreachable: "destination unreachable",
	ChecksumFailure:        "checksum failure",
	Timeout:                "timeout",
	InvalidConfiguration:   "invalid configuration",
	InvalidMessageContents: "invalid message contents",
}

func (e NetworkError) Error() string {
	if int(e) < len(networkErrorNames) && networkErrorNames[e] != "" {
		return "network: " + networkErrorNames[e]
	}
	return "network: unknown error"
}

// GenError reports general resource failures
type GenError uint8

const (
	ExistingConnectionError GenError = iota + 1
	EmptyQueueError
)

func (e GenError) Error() string {
	switch e {
	case ExistingConnectionError:
		return "connection already exists"
	case EmptyQueueError:
		return "queue empty"
	}
	return "unknown error"
}

// chainedError is a NetworkError caused by a lower-level failure
type chainedError struct {
	kind  NetworkError
	cause error
}

// Chain returns kind caused by cause. errors.Is and errors.As match both.
func Chain(cause error, kind NetworkError) error {
	if cause == nil {
		return kind
	}
	return &chainedError{kind: kind, cause: cause}
}

func (e *chainedError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *chainedError) Unwrap() []error {
	return []error{e.kind, e.cause}
}
