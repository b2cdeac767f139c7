//go:build !linux

package transport

import (
	"errors"
	"net"
)

const DefaultRingEntries = 256

var errUringUnsupported = errors.New("io_uring transport is only available on linux")

type Uring struct{}

func NewUring(entries uint) (*Uring, error) {
	return nil, errUringUnsupported
}

func (u *Uring) Wrap(conn net.Conn) (Transport, error) {
	return nil, errUringUnsupported
}

func (u *Uring) Close() error {
	return nil
}
