package store

import (
	"encoding/json"
	"fmt"
)

// EncodeFields renders a document body as JSON. time.Time values become RFC 3339 strings.
func EncodeFields(fields Fields) ([]byte, error) {
	if fields == nil {
		fields = Fields{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}

func DecodeFields(body []byte) (Fields, error) {
	fields := Fields{}
	if len(body) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}

// Normalize round-trips fields through JSON so every backend hands back the same shapes
// (float64 numbers, []any arrays, map[string]any objects).
func Normalize(fields Fields) (Fields, error) {
	b, err := EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	return DecodeFields(b)
}
