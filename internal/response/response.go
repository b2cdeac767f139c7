package response

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/xaitan80/rawhttpd/internal/headers"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"

	// DateFormat is RFC 1123 with the zone pinned to GMT, as HTTP requires.
	DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// ErrAlreadyWritten is returned when a second response is started on the
// same Writer.
var ErrAlreadyWritten = errors.New("response already written")

// WriteStatusLine writes the HTTP/1.1 status line for the given status code.
func WriteStatusLine(w io.Writer, statusCode StatusCode) error {
	reason := statusCode.Reason()
	if reason == "" {
		_, err := fmt.Fprintf(w, "HTTP/1.1 %d\r\n", int(statusCode))
		return err
	}
	_, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", int(statusCode), reason)
	return err
}

// GetDefaultHeaders returns the default headers for our responses.
func GetDefaultHeaders(contentLen int, contentType string, now time.Time) headers.Headers {
	if contentType == "" {
		contentType = ContentTypeText
	}
	h := headers.NewHeaders()
	// Use canonical case for response header keys
	h["Content-Length"] = strconv.Itoa(contentLen)
	h["Connection"] = "close"
	h["Content-Type"] = contentType
	h["Date"] = now.UTC().Format(DateFormat)
	return h
}

// WriteHeaders writes headers as "Key: Value\r\n" lines and a final CRLF.
func WriteHeaders(w io.Writer, h headers.Headers) error {
	// Preferred order for our default headers
	order := []string{"Content-Length", "Connection", "Content-Type", "Date"}
	written := make(map[string]struct{}, len(h))
	for _, k := range order {
		if v, ok := h[k]; ok {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, v); err != nil {
				return err
			}
			written[k] = struct{}{}
		}
	}
	// Write any remaining headers in sorted order
	var rest []string
	for k := range h {
		if _, ok := written[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, h[k]); err != nil {
			return err
		}
	}
	// End of headers
	_, err := io.WriteString(w, "\r\n")
	return err
}

// EncodeBody turns a handler's body value into bytes and the content type it
// must be sent with. Strings and byte slices are sent as-is under
// contentType (text/plain when empty). Anything else is structured and goes
// out as canonical JSON with Content-Type forced to application/json.
func EncodeBody(body any, contentType string) ([]byte, string, error) {
	if contentType == "" {
		contentType = ContentTypeText
	}
	switch b := body.(type) {
	case nil:
		return nil, contentType, nil
	case string:
		return []byte(b), contentType, nil
	case []byte:
		return b, contentType, nil
	default:
		data, err := EncodeJSON(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return data, ContentTypeJSON, nil
	}
}

// Build serializes a complete response. Content-Length is always the byte
// length of the encoded body. Entries in extra are added after the defaults
// and may override all of them except Content-Length, and Content-Type when
// the body goes out as JSON.
func Build(status StatusCode, extra headers.Headers, body any, contentType string, now time.Time) ([]byte, error) {
	data, ct, err := EncodeBody(body, contentType)
	if err != nil {
		return nil, err
	}
	h := GetDefaultHeaders(len(data), ct, now)
	for k, v := range extra {
		switch {
		case k == "Content-Length":
			continue
		case k == "Content-Type" && ct == ContentTypeJSON:
			continue
		}
		h[k] = v
	}

	var buf bytes.Buffer
	if err := WriteStatusLine(&buf, status); err != nil {
		return nil, err
	}
	if err := WriteHeaders(&buf, h); err != nil {
		return nil, err
	}
	buf.Write(data)
	return buf.Bytes(), nil
}

// Writer writes exactly one response to the underlying stream.
type Writer struct {
	w       io.Writer
	now     func() time.Time
	wrote   bool
	written int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// WithClock replaces the time source used for the Date header.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// WroteAnything reports whether a response has been started.
func (w *Writer) WroteAnything() bool {
	return w.wrote
}

// BytesWritten returns how many response bytes reached the stream.
func (w *Writer) BytesWritten() int {
	return w.written
}

// Write builds the full response and hands it to the stream in one call.
func (w *Writer) Write(status StatusCode, extra headers.Headers, body any, contentType string) error {
	if w.wrote {
		return ErrAlreadyWritten
	}
	out, err := Build(status, extra, body, contentType, w.now())
	if err != nil {
		return err
	}
	w.wrote = true
	n, err := w.w.Write(out)
	w.written += n
	if err == nil && n < len(out) {
		err = io.ErrShortWrite
	}
	return err
}

// WriteText sends body as text/plain.
func (w *Writer) WriteText(status StatusCode, body string) error {
	return w.Write(status, nil, body, ContentTypeText)
}

// WriteJSON sends v as canonical JSON, strings included.
func (w *Writer) WriteJSON(status StatusCode, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return err
	}
	return w.Write(status, nil, data, ContentTypeJSON)
}
