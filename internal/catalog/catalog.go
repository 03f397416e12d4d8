// Package catalog implements spec.md's table/column schema (part of C6),
// grounded on the teacher's own Table/Column modeling
// (internal/core/schema.go) translated from a schema-diffing domain to a
// row-storage one: a Table still has a name and ordered columns, but a
// Column now carries the nullable/default/primary-key/index facts a row
// engine (rather than a migration generator) needs at write time.
package catalog

import (
	"kvsql/internal/errs"
	"kvsql/internal/value"
)

// Column describes one column of a Table (spec.md §3.2).
type Column struct {
	Name         string
	DataType     value.DataType
	Nullable     bool
	Default      *value.Value
	IsPrimaryKey bool
	IsIndex      bool
}

// Table is an ordered sequence of columns identified by name.
type Table struct {
	Name    string
	Columns []Column
}

// ColumnByName returns the column named name and its position, or
// (nil, -1) if no such column exists.
func (t *Table) ColumnByName(name string) (*Column, int) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], i
		}
	}
	return nil, -1
}

// PrimaryKey returns the table's single primary-key column and its
// position. Validate guarantees exactly one exists.
func (t *Table) PrimaryKey() (*Column, int) {
	for i := range t.Columns {
		if t.Columns[i].IsPrimaryKey {
			return &t.Columns[i], i
		}
	}
	return nil, -1
}

// IndexedColumns returns every non-PK column with IsIndex set (spec.md
// §3.2 invariant 5: IsIndex on the PK column is ignored).
func (t *Table) IndexedColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.IsIndex && !c.IsPrimaryKey {
			out = append(out, c)
		}
	}
	return out
}

// ColumnNames returns the table's column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate enforces spec.md §3.2's CREATE-time invariants 1-4. Invariant 5
// (IsIndex ignored on the PK column) is not checked here; IndexedColumns
// applies it.
func (t *Table) Validate() error {
	if len(t.Columns) == 0 {
		return errs.Internal("table %q must have at least one column", t.Name)
	}

	pkCount := 0
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pkCount++
			if c.Nullable {
				return errs.Internal("table %q: primary key column %q cannot be nullable", t.Name, c.Name)
			}
		}
		if c.Default != nil {
			if c.Default.IsNull() {
				if !c.Nullable {
					return errs.Internal("table %q: column %q has a NULL default but is not nullable", t.Name, c.Name)
				}
			} else if dt, ok := c.Default.GetDataType(); !ok || dt != c.DataType {
				return errs.Internal("table %q: column %q default type does not match column type", t.Name, c.Name)
			}
		}
	}
	switch {
	case pkCount == 0:
		return errs.Internal("table %q must declare exactly one primary key column", t.Name)
	case pkCount > 1:
		return errs.Internal("table %q must declare exactly one primary key column, found %d", t.Name, pkCount)
	}
	return nil
}
