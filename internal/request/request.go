package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xaitan80/rawhttpd/internal/headers"
)

// DefaultBufferSize bounds the single read performed per connection.
const DefaultBufferSize = 4096

var (
	// ErrConnectionEmpty is returned when the peer sent nothing. The caller
	// should drop the connection without answering.
	ErrConnectionEmpty = errors.New("connection closed before any bytes were received")
	// ErrMalformedRequestLine is returned when the request line has fewer than
	// three space separated tokens.
	ErrMalformedRequestLine = errors.New("malformed request line")
	// ErrInvalidContentLength is returned when Content-Length is not a
	// non-negative integer.
	ErrInvalidContentLength = errors.New("invalid Content-Length")
)

var (
	crlf          = []byte("\r\n")
	headerSection = []byte("\r\n\r\n")
)

type Request struct {
	RequestLine RequestLine
	Headers     headers.Headers
	// Body holds at most Content-Length bytes of whatever followed the blank
	// line in the one buffer that was read. It is shorter than declared when
	// the peer had not sent the rest yet.
	Body []byte
}

type RequestLine struct {
	HttpVersion   string
	RequestTarget string
	Method        string
}

// Path returns the request target without its query component.
func (r *Request) Path() string {
	p, _, _ := strings.Cut(r.RequestLine.RequestTarget, "?")
	return p
}

// RawQuery returns everything after the first '?' of the request target, and
// whether a '?' was present at all.
func (r *Request) RawQuery() (string, bool) {
	_, q, ok := strings.Cut(r.RequestLine.RequestTarget, "?")
	return q, ok
}

// Latin1ToUTF8 re-encodes request text for output. Request strings hold the
// raw bytes, one per ISO-8859-1 character; responses go out as UTF-8, so
// every byte >= 0x80 becomes a two byte sequence.
func Latin1ToUTF8(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return s
	}
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		out = utf8.AppendRune(out, rune(s[i]))
	}
	return string(out)
}

// ReadFrom performs exactly one Read of at most bufSize bytes from reader and
// parses the result as a complete request. No further reads are attempted,
// even if the declared Content-Length was not satisfied.
func ReadFrom(reader io.Reader, bufSize int) (*Request, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	buf := make([]byte, bufSize)
	n, err := reader.Read(buf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrConnectionEmpty, err)
		}
		return nil, ErrConnectionEmpty
	}
	return Parse(buf[:n])
}

// Parse decodes one raw buffer into a Request.
//
// Bytes are kept as-is, so every byte maps to exactly one character of the
// resulting strings, the way ISO-8859-1 decoding would. The buffer is split at
// the first CRLF CRLF into the header section and the body remainder.
func Parse(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, ErrConnectionEmpty
	}

	head, rest, _ := bytes.Cut(data, headerSection)
	lines := bytes.Split(head, crlf)

	rl, err := parseRequestLine(string(lines[0]))
	if err != nil {
		return nil, err
	}

	r := &Request{
		RequestLine: rl,
		Headers:     headers.NewHeaders(),
	}
	for _, line := range lines[1:] {
		// lines without ": " are dropped
		r.Headers.ParseLine(string(line))
	}

	r.Body = rest
	if cl, ok := r.Headers["content-length"]; ok {
		want, err := strconv.Atoi(cl)
		if err != nil || want < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidContentLength, cl)
		}
		if want < len(rest) {
			r.Body = rest[:want]
		}
	}
	return r, nil
}

// parseRequestLine splits "METHOD TARGET VERSION". The version is whatever
// follows the second space and is not validated.
func parseRequestLine(line string) (RequestLine, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return RequestLine{}, fmt.Errorf("%w: want 3 parts, got %d in %q", ErrMalformedRequestLine, len(parts), line)
	}
	return RequestLine{
		Method:        parts[0],
		RequestTarget: parts[1],
		HttpVersion:   parts[2],
	}, nil
}
