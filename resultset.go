package sqlmux

// ResultSet is a fully-materialized query result: the rows, the affected-row
// count for DML, and the column sequence shared by every row.
type ResultSet struct {
	rows         []Row
	rowsAffected int64
	columns      *Columns
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet { return &ResultSet{} }

// NewResultSetWithCapacity returns an empty result set with preallocated row
// storage.
func NewResultSetWithCapacity(capacity int) *ResultSet {
	return &ResultSet{rows: make([]Row, 0, capacity)}
}

// SetColumns sets the column sequence shared by all appended rows.
func (rs *ResultSet) SetColumns(columns *Columns) { rs.columns = columns }

// Columns returns the shared column sequence, nil if not yet known.
func (rs *ResultSet) Columns() *Columns { return rs.columns }

// AddRowValues appends a row holding values against the shared column
// sequence. The row takes the canonical index map for that sequence, so every
// row appended this way shares exactly one map. Values are dropped when no
// column sequence has been set.
func (rs *ResultSet) AddRowValues(values []Value) {
	if rs.columns == nil {
		return
	}
	rs.rows = append(rs.rows, NewRow(rs.columns, values))
	rs.rowsAffected++
}

// AddRow appends an already-built row. When the result set has no column
// sequence yet it adopts the row's.
func (rs *ResultSet) AddRow(row Row) {
	if rs.columns == nil {
		rs.columns = row.columns
	}
	rs.rows = append(rs.rows, row)
	rs.rowsAffected++
}

// Rows returns the materialized rows.
func (rs *ResultSet) Rows() []Row { return rs.rows }

// Row returns the row at ordinal i.
func (rs *ResultSet) Row(i int) Row { return rs.rows[i] }

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.rows) }

// RowsAffected returns the affected-row count: the number of rows appended,
// unless SetRowsAffected has overridden it.
func (rs *ResultSet) RowsAffected() int64 { return rs.rowsAffected }

// SetRowsAffected overrides the affected-row count.
func (rs *ResultSet) SetRowsAffected(n int64) { rs.rowsAffected = n }
