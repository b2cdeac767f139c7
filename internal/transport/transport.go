// Package transport moves the bytes of one accepted connection.
package transport

import (
	"fmt"
	"net"
)

// Transport is the byte stream the connection handler reads a request from
// and writes the response to.
type Transport interface {
	// Read receives data from the connection
	// Returns the number of bytes read
	Read(buf []byte) (int, error)

	// Write sends all of buf over the connection
	Write(buf []byte) (int, error)

	// Close closes the connection
	Close() error
}

// Backend wraps freshly accepted connections into Transports.
type Backend interface {
	Wrap(conn net.Conn) (Transport, error)
	Close() error
}

// Kind names a Backend on the command line.
type Kind string

const (
	KindNet   Kind = "net"
	KindUring Kind = "uring"
)

// NewBackend builds the backend for kind. The empty kind means KindNet.
func NewBackend(kind Kind) (Backend, error) {
	switch kind {
	case "", KindNet:
		return Net{}, nil
	case KindUring:
		u, err := NewUring(DefaultRingEntries)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

// Net hands the net.Conn through unchanged.
type Net struct{}

func (Net) Wrap(conn net.Conn) (Transport, error) {
	return conn, nil
}

func (Net) Close() error {
	return nil
}
