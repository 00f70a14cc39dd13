package sqlmux

import "context"

// QueryAndParams bundles a SQL string with its bound parameters, so helpers
// can pass both around without losing alignment with placeholder translation.
type QueryAndParams struct {
	// Query is the SQL text.
	Query string
	// Params are the values to bind.
	Params []Value
}

// NewQueryAndParams builds a bundle from SQL and parameters.
func NewQueryAndParams(query string, params []Value) QueryAndParams {
	return QueryAndParams{Query: query, Params: params}
}

// NewQueryWithoutParams builds a bundle with an empty parameter list.
func NewQueryWithoutParams(query string) QueryAndParams {
	return QueryAndParams{Query: query}
}

// QueryBuilder is the fluent statement builder returned by Conn.Query and
// Tx.Query. It accumulates parameters and per-call options, then terminates in
// Select, DML, or Batch.
//
// Placeholder translation happens in the terminator: the three-valued
// Translation switch resolves against the pool default, and translation is
// skipped entirely when the parameter list is empty or the backend's dialect
// does not participate.
type QueryBuilder struct {
	target statementTarget
	sql    string
	params []Value
	opts   QueryOptions
}

// Params appends parameters for this statement.
func (qb *QueryBuilder) Params(params ...Value) *QueryBuilder {
	qb.params = append(qb.params, params...)
	return qb
}

// Bundle replaces the SQL and parameters from a QueryAndParams.
func (qb *QueryBuilder) Bundle(qp QueryAndParams) *QueryBuilder {
	qb.sql = qp.Query
	qb.params = qp.Params
	return qb
}

// Translation overrides the translation mode for this call.
func (qb *QueryBuilder) Translation(mode TranslationMode) *QueryBuilder {
	qb.opts.Translation = mode
	return qb
}

// Prepared makes the terminator prepare the statement before executing it.
// Backends whose driver restricts where statements may be prepared surface an
// unimplemented error from the terminator.
func (qb *QueryBuilder) Prepared() *QueryBuilder {
	qb.opts.Prepare = PreparePrepared
	return qb
}

// Options replaces the per-call options wholesale.
func (qb *QueryBuilder) Options(opts QueryOptions) *QueryBuilder {
	qb.opts = opts
	return qb
}

// Select executes the statement as a read and returns the result set.
func (qb *QueryBuilder) Select(ctx context.Context) (*ResultSet, error) {
	sql := qb.translated()
	if qb.opts.Prepare == PreparePrepared {
		stmt, err := qb.target.prepare(ctx, sql)
		if err != nil {
			return nil, err
		}
		defer func() { _ = stmt.Close() }()
		return stmt.QueryPrepared(ctx, qb.params)
	}
	return qb.target.execSelect(ctx, sql, qb.params)
}

// DML executes the statement as a write and returns the affected-row count.
func (qb *QueryBuilder) DML(ctx context.Context) (int64, error) {
	sql := qb.translated()
	if qb.opts.Prepare == PreparePrepared {
		stmt, err := qb.target.prepare(ctx, sql)
		if err != nil {
			return 0, err
		}
		defer func() { _ = stmt.Close() }()
		return stmt.ExecutePrepared(ctx, qb.params)
	}
	return qb.target.execDML(ctx, sql, qb.params)
}

// Batch runs the SQL as a parameterless batch. Params are ignored by
// contract, and no translation is applied.
func (qb *QueryBuilder) Batch(ctx context.Context) error {
	return qb.target.execBatch(ctx, qb.sql)
}

func (qb *QueryBuilder) translated() string {
	if len(qb.params) == 0 {
		return qb.sql
	}
	style, participates := PlaceholderStyleFor(qb.target.databaseType())
	if !participates {
		return qb.sql
	}
	enabled := qb.opts.Translation.Resolve(qb.target.translateDefault())
	return TranslatePlaceholders(qb.sql, style, enabled)
}
