package sqlmux

import (
	"bytes"
	"testing"
	"time"
)

func TestValueAccessors(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 9, 11, 30, 0, 0, time.UTC)

	t.Run("int", func(t *testing.T) {
		v := Int(42)
		if n, ok := v.AsInt(); !ok || n != 42 {
			t.Errorf("AsInt() = %v, %v; want 42, true", n, ok)
		}
		if _, ok := v.AsText(); ok {
			t.Error("AsText() on int should not match")
		}
	})

	t.Run("float", func(t *testing.T) {
		v := Float(3.25)
		if f, ok := v.AsFloat(); !ok || f != 3.25 {
			t.Errorf("AsFloat() = %v, %v; want 3.25, true", f, ok)
		}
		if _, ok := v.AsInt(); ok {
			t.Error("AsInt() on float should not match")
		}
	})

	t.Run("text", func(t *testing.T) {
		v := Text("alice")
		if s, ok := v.AsText(); !ok || s != "alice" {
			t.Errorf("AsText() = %q, %v; want alice, true", s, ok)
		}
	})

	t.Run("bool", func(t *testing.T) {
		v := Bool(true)
		if b, ok := v.AsBool(); !ok || !b {
			t.Errorf("AsBool() = %v, %v; want true, true", b, ok)
		}
	})

	t.Run("timestamp", func(t *testing.T) {
		v := Timestamp(ts)
		if got, ok := v.AsTimestamp(); !ok || !got.Equal(ts) {
			t.Errorf("AsTimestamp() = %v, %v; want %v, true", got, ok, ts)
		}
	})

	t.Run("blob", func(t *testing.T) {
		v := Blob([]byte{0x01, 0x02})
		if b, ok := v.AsBlob(); !ok || !bytes.Equal(b, []byte{0x01, 0x02}) {
			t.Errorf("AsBlob() = %v, %v", b, ok)
		}
	})

	t.Run("null", func(t *testing.T) {
		v := Null()
		if !v.IsNull() {
			t.Error("Null().IsNull() = false")
		}
		if _, ok := v.AsInt(); ok {
			t.Error("AsInt() on null should not match")
		}
		var zero Value
		if !zero.IsNull() {
			t.Error("zero Value should be null")
		}
	})
}

func TestBoolAcceptsZeroOneIntegers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    Value
		expected bool
		ok       bool
	}{
		{Int(1), true, true},
		{Int(0), false, true},
		{Int(2), false, false},
		{Int(-1), false, false},
		{Text("true"), false, false},
	}
	for _, tt := range tests {
		b, ok := tt.value.AsBool()
		if b != tt.expected || ok != tt.ok {
			t.Errorf("AsBool(%v) = %v, %v; want %v, %v", tt.value, b, ok, tt.expected, tt.ok)
		}
	}
}

func TestTimestampAcceptsText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		expected time.Time
		ok       bool
	}{
		{"2024-03-09 11:30:00", time.Date(2024, 3, 9, 11, 30, 0, 0, time.UTC), true},
		{"2024-03-09 11:30:00.250", time.Date(2024, 3, 9, 11, 30, 0, 250_000_000, time.UTC), true},
		{"2024-03-09T11:30:00Z", time.Time{}, false},
		{"not a timestamp", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := Text(tt.text).AsTimestamp()
		if ok != tt.ok {
			t.Errorf("AsTimestamp(%q) ok = %v; want %v", tt.text, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.expected) {
			t.Errorf("AsTimestamp(%q) = %v; want %v", tt.text, got, tt.expected)
		}
	}
}

func TestJSONValue(t *testing.T) {
	t.Parallel()

	v, err := JSONValue(map[string]any{"name": "alice", "score": 7})
	if err != nil {
		t.Fatalf("JSONValue() error: %v", err)
	}
	var decoded struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	if err := v.UnmarshalJSONInto(&decoded); err != nil {
		t.Fatalf("UnmarshalJSONInto() error: %v", err)
	}
	if decoded.Name != "alice" || decoded.Score != 7 {
		t.Errorf("round trip = %+v", decoded)
	}

	if err := Int(1).UnmarshalJSONInto(&decoded); err == nil {
		t.Error("UnmarshalJSONInto on non-JSON value should fail")
	}
}
