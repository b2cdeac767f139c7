package response

import (
	"bytes"
	"encoding/json"
)

// EncodeJSON renders v as canonical JSON text: no insignificant whitespace
// except a single space after every ',' and ':' outside of strings, e.g.
// {"error": "Item not found"}. Object keys keep the order v carries, so a
// json.RawMessage comes back with its members in the order they were stored.
func EncodeJSON(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		raw = buf.Bytes()
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, err
	}
	return spaceSeparators(compact.Bytes()), nil
}

// spaceSeparators expects compact JSON.
func spaceSeparators(src []byte) []byte {
	out := make([]byte, 0, len(src)+len(src)/4)
	inString, escaped := false, false
	for _, c := range src {
		out = append(out, c)
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ',', ':':
			out = append(out, ' ')
		}
	}
	return out
}
