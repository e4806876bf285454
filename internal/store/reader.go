package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Coercion records a stored field that had an unexpected type and was replaced by a default.
type Coercion struct {
	Field string
	Value any
}

func (c Coercion) String() string {
	return fmt.Sprintf("%s: unexpected %T", c.Field, c.Value)
}

// Reader decodes schemaless fields. Missing fields silently take the supplied default; mistyped
// fields take the default and are recorded in Coercions.
type Reader struct {
	fields Fields
	prefix string
	issues *[]Coercion
}

func NewReader(fields Fields) *Reader {
	return &Reader{fields: fields, issues: new([]Coercion)}
}

func (r *Reader) Coercions() []Coercion {
	return *r.issues
}

func (r *Reader) record(key string, v any) {
	*r.issues = append(*r.issues, Coercion{Field: r.prefix + key, Value: v})
}

func (r *Reader) String(key, def string) string {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		r.record(key, v)
		return def
	}
	return s
}

func (r *Reader) Float(key string, def float64) float64 {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return def
	}
	f, ok := toFloat(v)
	if !ok {
		r.record(key, v)
		return def
	}
	return f
}

// Int truncates fractional numbers toward zero. Numbers outside the int range are coercions.
func (r *Reader) Int(key string, def int) int {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return def
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		r.record(key, v)
		return def
	}
	return int(f)
}

func (r *Reader) Bool(key string, def bool) bool {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		r.record(key, v)
		return def
	}
	return b
}

// Time accepts time.Time values and RFC 3339 strings.
func (r *Reader) Time(key string) time.Time {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	r.record(key, v)
	return time.Time{}
}

// List returns a reader per element of an array of objects. Elements that are not objects are skipped.
func (r *Reader) List(key string) []*Reader {
	v, ok := r.fields[key]
	if !ok || v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		if typed, isMaps := v.([]Fields); isMaps {
			raw = make([]any, len(typed))
			for i := range typed {
				raw[i] = typed[i]
			}
		} else {
			r.record(key, v)
			return nil
		}
	}

	out := make([]*Reader, 0, len(raw))
	for i, el := range raw {
		var fields Fields
		switch m := el.(type) {
		case map[string]any:
			fields = m
		case Fields:
			fields = m
		default:
			r.record(fmt.Sprintf("%s[%d]", key, i), el)
			continue
		}
		out = append(out, &Reader{
			fields: fields,
			prefix: fmt.Sprintf("%s%s[%d].", r.prefix, key, i),
			issues: r.issues,
		})
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
