package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xaitan80/rawhttpd/internal/headers"
	"github.com/xaitan80/rawhttpd/internal/request"
	"github.com/xaitan80/rawhttpd/internal/response"
	"github.com/xaitan80/rawhttpd/internal/transport"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080

	maxAcceptBackoff = time.Second
)

// Config controls the listener and the per-connection handling.
type Config struct {
	// Addr is host:port to listen on. Defaults to 0.0.0.0:8080.
	Addr string
	// ReadBufferSize bounds the single read done per connection.
	ReadBufferSize int
	// Dispatcher starts connection handlers. Defaults to Unbounded.
	Dispatcher Dispatcher
	// Backend performs connection I/O. Defaults to transport.Net.
	Backend transport.Backend
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = net.JoinHostPort(DefaultHost, fmt.Sprint(DefaultPort))
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = request.DefaultBufferSize
	}
	if c.Dispatcher == nil {
		c.Dispatcher = Unbounded{}
	}
	if c.Backend == nil {
		c.Backend = transport.Net{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

type Server struct {
	ln     net.Listener
	cfg    Config
	log    *slog.Logger
	closed atomic.Bool
	h      Handler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	conns  sync.WaitGroup
}

// Serve starts a TCP listener on cfg.Addr and begins accepting
// connections in a background goroutine.
func Serve(cfg Config, h Handler) (*Server, error) {
	cfg = cfg.withDefaults()
	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		ln:     ln,
		cfg:    cfg,
		log:    cfg.Logger,
		h:      h,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen()
	return s, nil
}

// Addr returns the address the listener is bound to.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close stops the server and closes the underlying listener, then waits for
// in-flight connections to finish.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting and waits for in-flight connections until ctx
// ends. Handlers have no timeout of their own, so a stalled peer holds
// Shutdown until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	err := s.ln.Close()
	<-s.done

	idle := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return errors.Join(err, s.cfg.Backend.Close())
}

// listen accepts connections until the server is closed, handing each to the
// dispatcher.
func (s *Server) listen() {
	defer close(s.done)
	var backoff time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.log.Warn("accept failed", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.conns.Add(1)
		err = s.cfg.Dispatcher.Dispatch(s.ctx, func() {
			defer s.conns.Done()
			s.handle(conn)
		})
		if err != nil {
			s.conns.Done()
			_ = conn.Close()
			if s.closed.Load() {
				return
			}
			s.log.Warn("dispatch failed", "error", err)
		}
	}
}

// handle answers one request on conn and closes it. Any failure, panics
// included, ends only this connection.
func (s *Server) handle(conn net.Conn) {
	log := s.log.With("remote", conn.RemoteAddr().String())
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("connection handler panicked", "panic", rec)
		}
	}()
	log.Debug("accepted connection")

	tr, err := s.cfg.Backend.Wrap(conn)
	if err != nil {
		log.Warn("wrap connection", "error", err)
		_ = conn.Close()
		return
	}
	defer func() {
		if err := tr.Close(); err != nil {
			log.Debug("close connection", "error", err)
		}
		log.Debug("closed connection")
	}()

	if err := s.serve(tr, log); err != nil {
		if errors.Is(err, request.ErrConnectionEmpty) {
			log.Debug("empty connection dropped", "error", err)
			return
		}
		log.Warn("connection failed", "error", err)
	}
}

// serve reads once, parses, runs the handler and writes the response.
func (s *Server) serve(tr transport.Transport, log *slog.Logger) error {
	r, err := request.ReadFrom(tr, s.cfg.ReadBufferSize)
	if err != nil {
		return err
	}
	log.Debug("parsed request",
		"method", r.RequestLine.Method,
		"target", r.RequestLine.RequestTarget,
		"version", r.RequestLine.HttpVersion,
		"headers", map[string]string(r.Headers),
		"body_bytes", len(r.Body),
	)

	rw := response.NewWriter(tr)
	if s.h != nil {
		if herr := s.h(r, rw); herr != nil {
			// a handler that already answered keeps its response
			if !rw.WroteAnything() {
				return writeHandlerError(rw, herr)
			}
			return nil
		}
	}
	// nothing written and no error: answer with an empty 200
	if !rw.WroteAnything() {
		return rw.Write(response.StatusOK, nil, nil, "")
	}
	return nil
}

// Handler is the function signature used to handle requests.
type Handler func(r *request.Request, w *response.Writer) *HandlerError

// HandlerError represents an error returned from a Handler. Body follows the
// response builder's rules: text as-is, anything structured as JSON.
type HandlerError struct {
	Status  response.StatusCode
	Headers headers.Headers
	Body    any
}

func (he *HandlerError) Error() string {
	return fmt.Sprintf("handler error: status %d", int(he.Status))
}

// writeHandlerError writes a standardized error response.
func writeHandlerError(w *response.Writer, he *HandlerError) error {
	if he == nil {
		return nil
	}
	return w.Write(he.Status, he.Headers, he.Body, he.Headers.Get("Content-Type"))
}
