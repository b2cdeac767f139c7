package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaitan80/rawhttpd/internal/headers"
)

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600))

// splitResponse returns the status line, the header lines and the body.
func splitResponse(t *testing.T, raw []byte) (string, map[string]string, []byte) {
	t.Helper()
	head, body, ok := bytes.Cut(raw, []byte("\r\n\r\n"))
	require.True(t, ok, "no blank line in %q", raw)
	lines := strings.Split(string(head), "\r\n")
	hdrs := make(map[string]string)
	for _, l := range lines[1:] {
		k, v, ok := strings.Cut(l, ": ")
		require.True(t, ok, "bad header line %q", l)
		hdrs[k] = v
	}
	return lines[0], hdrs, body
}

func TestWriteStatusLine(t *testing.T) {
	cases := map[StatusCode]string{
		StatusOK:                  "HTTP/1.1 200 OK\r\n",
		StatusBadRequest:          "HTTP/1.1 400 Bad Request\r\n",
		StatusNotFound:            "HTTP/1.1 404 Not Found\r\n",
		StatusMethodNotAllowed:    "HTTP/1.1 405 Method Not Allowed\r\n",
		StatusInternalServerError: "HTTP/1.1 500 Internal Server Error\r\n",
		StatusCode(418):           "HTTP/1.1 418\r\n",
	}
	for code, want := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteStatusLine(&buf, code))
		assert.Equal(t, want, buf.String())
	}
}

func TestWriteHeaders_Order(t *testing.T) {
	h := GetDefaultHeaders(5, "", fixedNow)
	h.Set("X-B", "2")
	h.Set("X-A", "1")
	var buf bytes.Buffer
	require.NoError(t, WriteHeaders(&buf, h))
	want := "Content-Length: 5\r\n" +
		"Connection: close\r\n" +
		"Content-Type: text/plain\r\n" +
		"Date: Tue, 05 Mar 2024 13:07:09 GMT\r\n" +
		"X-A: 1\r\n" +
		"X-B: 2\r\n" +
		"\r\n"
	assert.Equal(t, want, buf.String())
}

func TestBuild_Text(t *testing.T) {
	raw, err := Build(StatusOK, nil, "hello", "", fixedNow)
	require.NoError(t, err)
	status, hdrs, body := splitResponse(t, raw)
	assert.Equal(t, "HTTP/1.1 200 OK", status)
	assert.Equal(t, "text/plain", hdrs["Content-Type"])
	assert.Equal(t, "5", hdrs["Content-Length"])
	assert.Equal(t, "Tue, 05 Mar 2024 13:07:09 GMT", hdrs["Date"])
	assert.Equal(t, "hello", string(body))
}

func TestBuild_ContentLength_Counts_Bytes(t *testing.T) {
	msg := "héllo wörld ✓"
	raw, err := Build(StatusOK, nil, msg, "", fixedNow)
	require.NoError(t, err)
	_, hdrs, body := splitResponse(t, raw)
	assert.Equal(t, strconv.Itoa(len(msg)), hdrs["Content-Length"])
	assert.NotEqual(t, strconv.Itoa(len([]rune(msg))), hdrs["Content-Length"])
	assert.Equal(t, msg, string(body))
}

func TestBuild_Structured_Forces_JSON(t *testing.T) {
	raw, err := Build(StatusNotFound, nil, map[string]string{"error": "Item not found"}, "text/html", fixedNow)
	require.NoError(t, err)
	status, hdrs, body := splitResponse(t, raw)
	assert.Equal(t, "HTTP/1.1 404 Not Found", status)
	assert.Equal(t, "application/json", hdrs["Content-Type"])
	assert.Equal(t, `{"error": "Item not found"}`, string(body))
	assert.Equal(t, strconv.Itoa(len(body)), hdrs["Content-Length"])
}

func TestBuild_Extra_Headers(t *testing.T) {
	extra := headers.NewHeaders()
	extra.Set("Content-Type", "text/html")
	extra.Set("Content-Length", "999")
	extra.Set("X-Trace", "abc")
	raw, err := Build(StatusOK, extra, "<p>hi</p>", "", fixedNow)
	require.NoError(t, err)
	_, hdrs, _ := splitResponse(t, raw)
	assert.Equal(t, "text/html", hdrs["Content-Type"])
	assert.Equal(t, "9", hdrs["Content-Length"])
	assert.Equal(t, "abc", hdrs["X-Trace"])
}

func TestBuild_Extra_Cannot_Override_JSON_Type(t *testing.T) {
	extra := headers.NewHeaders()
	extra.Set("Content-Type", "text/html")
	extra.Set("Allow", "GET")
	raw, err := Build(StatusMethodNotAllowed, extra, map[string]string{"error": "nope"}, "", fixedNow)
	require.NoError(t, err)
	_, hdrs, body := splitResponse(t, raw)
	assert.Equal(t, "application/json", hdrs["Content-Type"])
	assert.Equal(t, "GET", hdrs["Allow"])
	assert.Equal(t, `{"error": "nope"}`, string(body))
}

func TestEncodeJSON(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"object", map[string]any{"a": 1}, `{"a": 1}`},
		{"array", []any{1, "two", nil, true}, `[1, "two", null, true]`},
		{"raw keeps key order", json.RawMessage(`{ "z" : 1 , "a" : [ 1 , 2 ] }`), `{"z": 1, "a": [1, 2]}`},
		{"separators inside strings untouched", json.RawMessage(`{"k":"a,b:c\"d,"}`), `{"k": "a,b:c\"d,"}`},
		{"no html escaping", map[string]string{"h": "<b>&"}, `{"h": "<b>&"}`},
		{"nested", json.RawMessage(`{"a":{"b":[{}, []]}}`), `{"a": {"b": [{}, []]}}`},
		{"scalar string", "hi", `"hi"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeJSON(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestEncodeJSON_Invalid(t *testing.T) {
	_, err := EncodeJSON(json.RawMessage(`{"a":`))
	assert.Error(t, err)
	_, err = EncodeJSON(make(chan int))
	assert.Error(t, err)
}

func TestEncodeJSON_Idempotent(t *testing.T) {
	v := json.RawMessage(`[{"a":1},{"b":[true,false]}]`)
	first, err := EncodeJSON(v)
	require.NoError(t, err)
	second, err := EncodeJSON(json.RawMessage(first))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

type errWriter struct{ err error }

func (e errWriter) Write([]byte) (int, error) { return 0, e.err }

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf).WithClock(func() time.Time { return fixedNow })
	assert.False(t, w.WroteAnything())

	require.NoError(t, w.WriteJSON(StatusOK, map[string]string{"message": "ok"}))
	assert.True(t, w.WroteAnything())
	assert.Equal(t, buf.Len(), w.BytesWritten())

	_, hdrs, body := splitResponse(t, buf.Bytes())
	assert.Equal(t, "application/json", hdrs["Content-Type"])
	assert.Equal(t, `{"message": "ok"}`, string(body))

	err := w.WriteText(StatusOK, "again")
	assert.ErrorIs(t, err, ErrAlreadyWritten)
}

func TestWriter_JSON_String(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteJSON(StatusOK, "plain"))
	_, hdrs, body := splitResponse(t, buf.Bytes())
	assert.Equal(t, "application/json", hdrs["Content-Type"])
	assert.Equal(t, `"plain"`, string(body))
}

func TestWriter_Errors(t *testing.T) {
	err := NewWriter(shortWriter{}).WriteText(StatusOK, "body")
	assert.ErrorIs(t, err, io.ErrShortWrite)

	boom := errors.New("broken pipe")
	err = NewWriter(errWriter{err: boom}).WriteText(StatusOK, "body")
	assert.ErrorIs(t, err, boom)
}
