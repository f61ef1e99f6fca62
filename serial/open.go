package serial

import (
	"fmt"

	bugst "go.bug.st/serial"
)

// Open opens the serial device at 8N1 with the given baud rate and wraps it
// in a running Port.
//
// Parameters:
//   - device: Device path, e.g. /dev/ttyUSB0
//   - baudRate: Line speed in bits per second
//   - readBufSize: Size of each pump read; values < 1 use a default
//
// Returns:
//   - A running *Port, or an error if the device could not be opened
func Open(device string, baudRate int, readBufSize int) (*Port, error) {
	mode := &bugst.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}

	dev, err := bugst.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}

	return NewPort(dev, readBufSize), nil
}
