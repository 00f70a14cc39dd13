package postgres

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlmux/sqlmux"
)

// Conn is one checked-out pgx connection. It implements sqlmux.Executor.
type Conn struct {
	pool   *pool
	conn   *pgxpool.Conn
	broken bool
}

// DatabaseType returns the backend tag.
func (c *Conn) DatabaseType() sqlmux.DatabaseType { return sqlmux.Postgres }

// TranslateByDefault returns the inherited translation default.
func (c *Conn) TranslateByDefault() bool { return c.pool.cfg.TranslatePlaceholders }

// Raw returns the underlying *pgxpool.Conn.
func (c *Conn) Raw() any { return c.conn }

// Ping checks liveness.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return sqlmux.ConnectionError("postgres ping failed: %v", err)
	}
	return nil
}

// Close returns the connection to the pgx pool, destroying it when broken.
func (c *Conn) Close(ctx context.Context) error {
	if c.broken {
		_ = c.conn.Conn().Close(ctx)
	}
	c.conn.Release()
	return nil
}

// ExecuteBatch runs semicolon-separated statements over the simple protocol,
// which is the only protocol that accepts multi-statement strings.
func (c *Conn) ExecuteBatch(ctx context.Context, sql string) error {
	if _, err := c.conn.Exec(ctx, sql, pgx.QueryExecModeSimpleProtocol); err != nil {
		return wrapPg(err)
	}
	return nil
}

// DML executes a write statement and returns the affected-row count.
func (c *Conn) DML(ctx context.Context, sql string, params []sqlmux.Value) (int64, error) {
	args, err := bindAll(params, sqlmux.BindExecute)
	if err != nil {
		return 0, err
	}
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, wrapPg(err)
	}
	return tag.RowsAffected(), nil
}

// Select executes a read statement and materializes the result set.
func (c *Conn) Select(ctx context.Context, sql string, params []sqlmux.Value) (*sqlmux.ResultSet, error) {
	args, err := bindAll(params, sqlmux.BindQuery)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapPg(err)
	}
	return collectRows(rows)
}

// Begin opens a transaction.
func (c *Conn) Begin(ctx context.Context) (sqlmux.TxExecutor, error) {
	pgTx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, wrapPg(err)
	}
	return &Tx{conn: c, tx: pgTx}, nil
}

// Prepare prepares a named statement on this connection, outside any
// transaction.
func (c *Conn) Prepare(ctx context.Context, sql string) (sqlmux.PreparedStatement, error) {
	sql = sqlmux.TranslatePlaceholders(sql, sqlmux.StyleDollar, c.TranslateByDefault())
	sd, err := c.conn.Conn().Prepare(ctx, sql, sql)
	if err != nil {
		return nil, wrapPg(err)
	}
	return &Stmt{conn: c, name: sd.Name}, nil
}

// bindAll converts unified values into pgx arguments. Both modes are
// supported; ordering is preserved.
func bindAll(params []sqlmux.Value, mode sqlmux.BindMode) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	args := make([]any, len(params))
	for i, p := range params {
		a, err := bindValue(p)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}

// bindValue maps a unified value onto pgx's native parameter form. JSON is
// passed as text; the extended protocol's described parameter OID makes the
// server treat it as json/jsonb. Timestamps bind as naive timestamps.
func bindValue(v sqlmux.Value) (any, error) {
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
		return b, nil
	case sqlmux.KindTimestamp:
		t, _ := v.AsTimestamp()
		return pgtype.Timestamp{Time: t, Valid: true}, nil
	case sqlmux.KindJSON:
		raw, _ := v.AsJSON()
		return string(raw), nil
	case sqlmux.KindBlob:
		b, _ := v.AsBlob()
		return b, nil
	default:
		return nil, sqlmux.ParameterError("cannot bind %v value for postgres", v.Kind())
	}
}

// collectRows drains pgx rows into the shared result-set representation.
func collectRows(rows pgx.Rows) (*sqlmux.ResultSet, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
	}
	rs := sqlmux.NewResultSet()
	rs.SetColumns(sqlmux.NewColumns(names))

	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, wrapPg(err)
		}
		values := make([]sqlmux.Value, len(raw))
		for i, cell := range raw {
			values[i] = scanValue(fields[i].DataTypeOID, cell)
		}
		rs.AddRowValues(values)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPg(err)
	}
	return rs, nil
}

// scanValue maps a decoded pgx cell onto the unified variant, using the
// column OID to keep json/jsonb cells as JSON rather than text.
func scanValue(oid uint32, cell any) sqlmux.Value {
	isJSON := oid == pgtype.JSONOID || oid == pgtype.JSONBOID
	switch x := cell.(type) {
	case nil:
		return sqlmux.Null()
	case int64:
		return sqlmux.Int(x)
	case int32:
		return sqlmux.Int(int64(x))
	case int16:
		return sqlmux.Int(int64(x))
	case float64:
		return sqlmux.Float(x)
	case float32:
		return sqlmux.Float(float64(x))
	case bool:
		return sqlmux.Bool(x)
	case string:
		if isJSON {
			return sqlmux.JSON(json.RawMessage(x))
		}
		return sqlmux.Text(x)
	case []byte:
		b := make([]byte, len(x))
		copy(b, x)
		if isJSON {
			return sqlmux.JSON(b)
		}
		return sqlmux.Blob(b)
	case time.Time:
		return sqlmux.Timestamp(x)
	case pgtype.Numeric:
		if f, err := x.Float64Value(); err == nil && f.Valid {
			return sqlmux.Float(f.Float64)
		}
		return sqlmux.Null()
	default:
		// jsonb decodes into generic Go containers; re-encode to keep the
		// variant JSON.
		if isJSON {
			if raw, err := json.Marshal(cell); err == nil {
				return sqlmux.JSON(raw)
			}
		}
		return sqlmux.Null()
	}
}
