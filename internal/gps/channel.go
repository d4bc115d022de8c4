package gps

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// pollTimeout caps how long a single serial read may block so the
// acquisition loop can observe its own deadline.
const pollTimeout = 50 * time.Millisecond

// Channel is the raw byte source for NMEA data. Read returns whatever is
// currently available and may legitimately return (0, nil) when the
// receiver is quiet.
type Channel interface {
	Open() error
	Read(p []byte) (int, error)
	Close() error
}

// SerialChannel is a Channel over a local serial port.
type SerialChannel struct {
	device string
	baud   int
	port   serial.Port
}

func NewSerialChannel(device string, baud int) *SerialChannel {
	return &SerialChannel{device: device, baud: baud}
}

func (c *SerialChannel) Open() error {
	if c.port != nil {
		return nil
	}

	port, err := serial.Open(c.device, &serial.Mode{BaudRate: c.baud})
	if err != nil {
		return errors.Wrapf(err, "failed to open GPS port %s", c.device)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return errors.Wrap(err, "failed to set GPS read timeout")
	}

	c.port = port
	return nil
}

func (c *SerialChannel) Read(p []byte) (int, error) {
	if c.port == nil {
		return 0, errors.New("GPS port not open")
	}
	return c.port.Read(p)
}

func (c *SerialChannel) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}
