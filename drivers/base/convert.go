package base

import (
	"time"

	"github.com/sqlmux/sqlmux"
)

// BindSqliteFamily converts a unified value into a SQLite-dialect driver
// argument. Booleans bound to integer columns encode as 0/1, JSON is emitted
// as text, and timestamps bind as naive text so they round-trip without a
// zone. The SQLite-family engines accept both modes.
func BindSqliteFamily(v sqlmux.Value, mode sqlmux.BindMode) (any, error) {
	switch v.Kind() {
	case sqlmux.KindNull:
		return nil, nil
	case sqlmux.KindInt:
		n, _ := v.AsInt()
		return n, nil
	case sqlmux.KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case sqlmux.KindText:
		s, _ := v.AsText()
		return s, nil
	case sqlmux.KindBool:
		b, _ := v.AsBool()
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	case sqlmux.KindTimestamp:
		t, _ := v.AsTimestamp()
		if t.Nanosecond() == 0 {
			return t.Format(sqlmux.TimestampLayout), nil
		}
		return t.Format(sqlmux.TimestampLayoutMillis), nil
	case sqlmux.KindJSON:
		raw, _ := v.AsJSON()
		return string(raw), nil
	case sqlmux.KindBlob:
		b, _ := v.AsBlob()
		return b, nil
	default:
		return nil, sqlmux.ParameterError("cannot bind %v value for a SQLite-family engine", v.Kind())
	}
}

// ScanSqliteFamily converts a value scanned out of a SQLite-dialect driver
// back into the unified variant. Timestamp columns come back as text; the
// Value accessors handle the coercion, so text stays text here.
func ScanSqliteFamily(src any) sqlmux.Value {
	switch x := src.(type) {
	case nil:
		return sqlmux.Null()
	case int64:
		return sqlmux.Int(x)
	case float64:
		return sqlmux.Float(x)
	case bool:
		return sqlmux.Bool(x)
	case string:
		return sqlmux.Text(x)
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		return sqlmux.Blob(b)
	case time.Time:
		return sqlmux.Timestamp(x)
	default:
		return sqlmux.Null()
	}
}
