package sqlmux

import (
	"time"

	"github.com/goccy/go-json"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	// KindNull is an explicit SQL NULL.
	KindNull ValueKind = iota
	// KindInt is a 64-bit signed integer.
	KindInt
	// KindFloat is a 64-bit float.
	KindFloat
	// KindText is a text value.
	KindText
	// KindBool is a boolean value.
	KindBool
	// KindTimestamp is a calendar timestamp with no time zone.
	KindTimestamp
	// KindJSON is a JSON document.
	KindJSON
	// KindBlob is a byte blob.
	KindBlob
)

// Timestamp text forms accepted by AsTimestamp and used when binding
// timestamps as text for the embedded engines. Timestamps carry no zone.
const (
	TimestampLayout       = "2006-01-02 15:04:05"
	TimestampLayoutMillis = "2006-01-02 15:04:05.000"
)

// Value is the unified variant used for query parameters and row cells.
//
// The same Value type flows through every backend so helper code never has to
// branch on driver types:
//
//	params := []sqlmux.Value{
//	    sqlmux.Int(1),
//	    sqlmux.Text("alice"),
//	    sqlmux.Bool(true),
//	}
//
// The zero Value is Null.
type Value struct {
	kind ValueKind
	n    int64
	f    float64
	s    string
	b    bool
	t    time.Time
	j    json.RawMessage
	blob []byte
}

// Null returns an explicit NULL value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, n: v} }

// Float returns a float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text returns a text value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bool returns a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Timestamp returns a timestamp value. Timestamps are naive: the wall-clock
// fields are what gets bound and compared, the location is ignored.
func Timestamp(v time.Time) Value { return Value{kind: KindTimestamp, t: v} }

// JSON returns a JSON value holding the raw document as-is.
func JSON(raw json.RawMessage) Value { return Value{kind: KindJSON, j: raw} }

// JSONValue marshals v and returns it as a JSON value.
func JSONValue(v any) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Null(), ParameterError("cannot marshal %T to JSON: %v", v, err)
	}
	return JSON(raw), nil
}

// Blob returns a byte blob value. The slice is held by reference, not copied.
func Blob(v []byte) Value { return Value{kind: KindBlob, blob: v} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the contained integer. ok is false on any other variant.
func (v Value) AsInt() (int64, bool) {
	if v.kind == KindInt {
		return v.n, true
	}
	return 0, false
}

// AsFloat returns the contained float. ok is false on any other variant.
func (v Value) AsFloat() (float64, bool) {
	if v.kind == KindFloat {
		return v.f, true
	}
	return 0, false
}

// AsText returns the contained text. ok is false on any other variant.
func (v Value) AsText() (string, bool) {
	if v.kind == KindText {
		return v.s, true
	}
	return "", false
}

// AsBool returns the contained boolean. Integer 0 and 1 are accepted as well,
// since the embedded engines store booleans in integer columns.
func (v Value) AsBool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.b, true
	case KindInt:
		switch v.n {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	}
	return false, false
}

// AsTimestamp returns the contained timestamp. Text in the forms
// "YYYY-MM-DD HH:MM:SS" and "YYYY-MM-DD HH:MM:SS.fff" is accepted as well,
// matching how the embedded engines return timestamp columns.
func (v Value) AsTimestamp() (time.Time, bool) {
	switch v.kind {
	case KindTimestamp:
		return v.t, true
	case KindText:
		if t, err := time.Parse(TimestampLayout, v.s); err == nil {
			return t, true
		}
		if t, err := time.Parse(TimestampLayoutMillis, v.s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AsJSON returns the contained raw JSON document. ok is false on any other
// variant.
func (v Value) AsJSON() (json.RawMessage, bool) {
	if v.kind == KindJSON {
		return v.j, true
	}
	return nil, false
}

// UnmarshalJSONInto decodes the contained JSON document into dst.
func (v Value) UnmarshalJSONInto(dst any) error {
	raw, ok := v.AsJSON()
	if !ok {
		return ParameterError("value is %v, not JSON", v.kind)
	}
	return json.Unmarshal(raw, dst)
}

// AsBlob returns the contained blob. ok is false on any other variant.
func (v Value) AsBlob() ([]byte, bool) {
	if v.kind == KindBlob {
		return v.blob, true
	}
	return nil, false
}

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	case KindJSON:
		return "json"
	case KindBlob:
		return "blob"
	default:
		return "unknown"
	}
}
