// Package protocol implements the hexcell inter-cell wire format
package protocol

// Version is the hexcell runtime version
const Version = "0.3.0"

// Wire format versions. Version 1 carried a 128-byte payload behind a
// 16-bit header and is no longer accepted.
const (
	WireVersionLegacy = 1
	WireVersion       = 2
)

// Message layout constants
const (
	HeaderSize = 4   // port u8, status u8, length u16 (little endian)
	MaxPayload = 256 // Maximum payload bytes per message

	MessageMax = 512 // Scratch output capacity (holds one full frame plus slack)
)

// Status classifies a message
type Status uint8

const (
	StatusOK Status = iota
	StatusACK
	StatusNAK
	StatusQuery
	StatusTimeout
	StatusError
	statusCount
)

var statusNames = [statusCount]string{"OK", "ACK", "NAK", "QUERY", "TIMEOUT", "ERROR"}

// Valid reports whether s is a known status code
func (s Status) Valid() bool {
	return s < statusCount
}

func (s Status) String() string {
	if s.Valid() {
		return statusNames[s]
	}
	return "STATUS?"
}
