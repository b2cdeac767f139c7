//go:build linux

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/iceber/iouring-go"
)

// DefaultRingEntries is the submission queue depth of the shared ring.
const DefaultRingEntries = 256

var errNoFile = errors.New("connection does not expose a file descriptor")

// Uring performs connection reads and writes through one shared io_uring.
type Uring struct {
	iour *iouring.IOURing
}

// NewUring creates the ring. It fails on kernels without io_uring support.
func NewUring(entries uint) (*Uring, error) {
	iour, err := iouring.New(entries)
	if err != nil {
		return nil, fmt.Errorf("initialize io_uring: %w", err)
	}
	return &Uring{iour: iour}, nil
}

// Wrap duplicates the connection's descriptor for use with the ring. The
// original net.Conn is closed together with the Transport.
func (u *Uring) Wrap(conn net.Conn) (Transport, error) {
	fc, ok := conn.(interface{ File() (*os.File, error) })
	if !ok {
		return nil, errNoFile
	}
	f, err := fc.File()
	if err != nil {
		return nil, fmt.Errorf("dup connection fd: %w", err)
	}
	return &uringConn{iour: u.iour, conn: conn, file: f, fd: int(f.Fd())}, nil
}

func (u *Uring) Close() error {
	if u.iour == nil {
		return nil
	}
	return u.iour.Close()
}

type uringConn struct {
	iour      *iouring.IOURing
	conn      net.Conn
	file      *os.File
	fd        int
	closeOnce sync.Once
	closeErr  error
}

func (c *uringConn) Read(buf []byte) (int, error) {
	ch := make(chan iouring.Result, 1)
	req, err := c.iour.SubmitRequest(iouring.Recv(c.fd, buf, 0), ch)
	if err != nil {
		return 0, fmt.Errorf("submit recv: %w", err)
	}
	<-ch
	n, err := completed(req)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *uringConn) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		ch := make(chan iouring.Result, 1)
		req, err := c.iour.SubmitRequest(iouring.Send(c.fd, buf[total:], 0), ch)
		if err != nil {
			return total, fmt.Errorf("submit send: %w", err)
		}
		<-ch
		n, err := completed(req)
		if err != nil {
			return total, err
		}
		if n <= 0 {
			return total, io.ErrClosedPipe
		}
		total += n
	}
	return total, nil
}

func (c *uringConn) Close() error {
	c.closeOnce.Do(func() {
		ferr := c.file.Close()
		cerr := c.conn.Close()
		c.closeErr = errors.Join(ferr, cerr)
	})
	return c.closeErr
}

// completed turns a finished Recv/Send request into a byte count. Those
// requests carry no resolver, so the raw CQE result is the only outcome: a
// negative value is an errno.
func completed(req iouring.Request) (int, error) {
	if err := req.Err(); err != nil {
		return 0, err
	}
	res, err := req.GetRes()
	if err != nil {
		return 0, err
	}
	if res < 0 {
		return 0, syscall.Errno(-res)
	}
	return res, nil
}
