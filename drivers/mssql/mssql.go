// Package mssql provides the SQL Server backend over go-mssqldb.
//
// SQL Server uses named @pN parameters and does not participate in
// placeholder translation; write statements in the server's own dialect.
//
//	cap, err := mssql.NewConfigAndPool(ctx, mssql.Config{
//	    Host: "localhost", Port: 1433,
//	    User: "sa", Password: secret, Database: "app",
//	    PoolSize: 8,
//	})
package mssql

import (
	"context"
	"fmt"
	"net/url"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/sqlmux/sqlmux"
	"github.com/sqlmux/sqlmux/drivers/base"
)

// Config describes a SQL Server database and its pool.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	PoolSize              int
	ConnectTimeout        time.Duration
	AcquireTimeout        time.Duration
	TranslatePlaceholders bool
	Logger                sqlmux.Logger
}

// NewConfigAndPool builds the bounded pool, verifies the handshake, and
// wraps it in the erased facade.
func NewConfigAndPool(ctx context.Context, cfg Config, opts ...sqlmux.Option) (*sqlmux.ConfigAndPool, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, sqlmux.ConfigError("mssql host and database name are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	p, err := base.NewPool(ctx, base.Config{
		DatabaseType:          sqlmux.Mssql,
		DriverName:            "sqlserver",
		DSN:                   buildDSN(cfg),
		PoolSize:              cfg.PoolSize,
		AcquireTimeout:        cfg.AcquireTimeout,
		TranslatePlaceholders: cfg.TranslatePlaceholders,
		Logger:                cfg.Logger,
		BindValue:             bindValue,
		ScanValue:             scanValue,
		WrapError:             func(err error) error { return sqlmux.MssqlError(err) },
	})
	if err != nil {
		return nil, err
	}
	return sqlmux.NewPool(p, opts...), nil
}

func buildDSN(cfg Config) string {
	u := &url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	q := url.Values{}
	q.Set("database", cfg.Database)
	if cfg.ConnectTimeout > 0 {
		q.Set("dial timeout", fmt.Sprintf("%d", int(cfg.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// bindValue maps a unified value onto go-mssqldb's parameter form. JSON
// binds as NVARCHAR text; timestamps bind as naive time values.
func bindValue(v sqlmux.Value, mode sqlmux.BindMode) (any, error) {
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
		return t, nil
	case sqlmux.KindJSON:
		raw, _ := v.AsJSON()
		return string(raw), nil
	case sqlmux.KindBlob:
		b, _ := v.AsBlob()
		return b, nil
	default:
		return nil, sqlmux.ParameterError("cannot bind %v value for mssql", v.Kind())
	}
}

func scanValue(src any) sqlmux.Value {
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
