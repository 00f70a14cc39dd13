package sqlmux

import "sync"

// Columns is the ordered column-name sequence shared by every row of a result
// set. It is immutable after construction; sharing is by pointer, and the
// pointer identity is what keys the canonical name-to-index map in the
// process-wide registry.
type Columns struct {
	names []string
}

// NewColumns returns a Columns over a copy of names.
func NewColumns(names []string) *Columns {
	c := &Columns{names: make([]string, len(names))}
	copy(c.names, names)
	return c
}

// Len returns the number of columns.
func (c *Columns) Len() int { return len(c.names) }

// Name returns the column name at ordinal i.
func (c *Columns) Name(i int) string { return c.names[i] }

// Names returns a copy of the column names.
func (c *Columns) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// columnIndexRegistry canonicalizes the name-to-index map per shared Columns:
// all rows built against the same *Columns get the exact same map. Guarded by
// a single lock; entries live as long as the process, like the pointer-keyed
// cache in the drivers this mirrors.
var columnIndexRegistry = struct {
	mu sync.Mutex
	m  map[*Columns]map[string]int
}{m: make(map[*Columns]map[string]int)}

// canonicalIndex returns the canonical name-to-index map for c, building it on
// first use.
func canonicalIndex(c *Columns) map[string]int {
	columnIndexRegistry.mu.Lock()
	defer columnIndexRegistry.mu.Unlock()
	if idx, ok := columnIndexRegistry.m[c]; ok {
		return idx
	}
	idx := make(map[string]int, len(c.names))
	for i, name := range c.names {
		idx[name] = i
	}
	columnIndexRegistry.m[c] = idx
	return idx
}

// Row is one row of a result set: an ordered sequence of values plus the
// shared column-name sequence and its shared index map.
type Row struct {
	columns *Columns
	index   map[string]int
	values  []Value
}

// NewRow builds a row against a shared column sequence. The name-to-index map
// comes from the canonical registry, so rows over the same *Columns share one
// map.
func NewRow(columns *Columns, values []Value) Row {
	var index map[string]int
	if columns != nil {
		index = canonicalIndex(columns)
	}
	return Row{columns: columns, index: index, values: values}
}

// Columns returns the shared column sequence, nil for a bare row.
func (r Row) Columns() *Columns { return r.columns }

// Len returns the number of values in the row.
func (r Row) Len() int { return len(r.values) }

// ColumnIndex returns the ordinal of the named column. Lookup goes through the
// shared index map; rows constructed outside the registry fall back to a
// linear scan of the column names.
func (r Row) ColumnIndex(name string) (int, bool) {
	if r.index != nil {
		if i, ok := r.index[name]; ok {
			return i, true
		}
		return 0, false
	}
	if r.columns != nil {
		for i, n := range r.columns.names {
			if n == name {
				return i, true
			}
		}
	}
	return 0, false
}

// Get returns the value in the named column.
func (r Row) Get(name string) (Value, bool) {
	i, ok := r.ColumnIndex(name)
	if !ok {
		return Null(), false
	}
	return r.GetByIndex(i)
}

// GetByIndex returns the value at ordinal i.
func (r Row) GetByIndex(i int) (Value, bool) {
	if i < 0 || i >= len(r.values) {
		return Null(), false
	}
	return r.values[i], true
}
