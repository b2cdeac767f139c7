package headers

import (
	"strings"
)

// separator splits a header line into name and value. A line that lacks it
// is not a header.
const separator = ": "

// Headers represents a simple HTTP headers map.
//
// Request headers are stored under lower-cased names. Response headers keep
// the caller's spelling so they go out on the wire as written.
type Headers map[string]string

// NewHeaders creates an empty Headers map.
func NewHeaders() Headers {
	return make(Headers)
}

// ParseLine parses a single "key: value" line (without its CRLF) into h.
// The key is lower-cased and the value kept byte for byte. A later line with
// the same key replaces the earlier value. It reports false, leaving h
// untouched, when the line has no ": " separator.
func (h Headers) ParseLine(line string) bool {
	key, val, ok := strings.Cut(line, separator)
	if !ok {
		return false
	}
	h[strings.ToLower(key)] = val
	return true
}

// Get returns the value stored under key, falling back to its lower-cased
// form so lookups work against parsed request headers.
func (h Headers) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	return h[strings.ToLower(key)]
}

// Has reports whether key (or its lower-cased form) is present.
func (h Headers) Has(key string) bool {
	if _, ok := h[key]; ok {
		return true
	}
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Set stores val under key exactly as spelled.
func (h Headers) Set(key, val string) {
	h[key] = val
}
