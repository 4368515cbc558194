// Package serial opens the UART a physical cell is attached to
package serial

import (
	"io"
	"time"
)

// Port is an open serial line. Native ports come from Open; tests use
// any io.ReadWriteCloser wrapped with Flush.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; the cell firmware runs its port UARTs at 115200
	Baud int

	// Read timeout (0 = blocking). A finite timeout lets readers notice Close.
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration matching the cell firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
