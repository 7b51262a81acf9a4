// Package serial opens the controller's USB CDC or UART link
package serial

import (
	"io"
)

// Port is a byte link to the controller
type Port interface {
	io.ReadWriteCloser

	// Flush discards bytes buffered in either direction, used to drop stale
	// output before the first block
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it
	Baud int

	// Read timeout in milliseconds. Reads that time out are retried, so
	// this only bounds how long Close waits for the reader.
	ReadTimeout int
}

// DefaultBaud is the UART rate of the controller board
const DefaultBaud = 115200

// DefaultConfig returns the configuration for a controller on device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
