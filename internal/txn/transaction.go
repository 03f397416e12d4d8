package txn

import (
	"sort"

	"kvsql/internal/catalog"
	"kvsql/internal/errs"
	"kvsql/internal/mvcc"
	"kvsql/internal/value"
)

// Transaction binds one mvcc.Txn to kvsql's catalog/row/index layout
// (spec.md C10). Executors (internal/exec) hold one of these, never an
// mvcc.Txn directly.
type Transaction struct {
	txn *mvcc.Txn
}

// Begin starts a new Transaction over m.
func Begin(m *mvcc.MVCC) (*Transaction, error) {
	t, err := m.Begin()
	if err != nil {
		return nil, err
	}
	return &Transaction{txn: t}, nil
}

// Version exposes the underlying MVCC version (spec.md C10's
// get_version).
func (t *Transaction) Version() uint64 { return t.txn.Version() }

// Commit commits the underlying MVCC transaction.
func (t *Transaction) Commit() error { return t.txn.Commit() }

// Rollback rolls back the underlying MVCC transaction.
func (t *Transaction) Rollback() error { return t.txn.Rollback() }

// GetTable returns a table's schema, or ok=false if it does not exist.
func (t *Transaction) GetTable(name string) (*catalog.Table, bool, error) {
	raw, ok, err := t.txn.Get(keyTable(name))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	tbl, err := catalog.DecodeTable(raw)
	if err != nil {
		return nil, false, err
	}
	return tbl, true, nil
}

// MustGetTable returns a table's schema or an Internal error naming it.
func (t *Transaction) MustGetTable(name string) (*catalog.Table, error) {
	tbl, ok, err := t.GetTable(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Internal("table %q does not exist", name)
	}
	return tbl, nil
}

// tablePrefix is the fixed key prefix under which every Table(name)
// schema record lives; since Table keys are tag+terminated name with
// nothing else following, the bare tag byte is itself a valid prefix.
func tablePrefix() []byte { return []byte{tagTable} }

// GetAllTableNames lists every table's name, ascending.
func (t *Transaction) GetAllTableNames() ([]string, error) {
	pairs, err := t.txn.PrefixScan(tablePrefix())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		tbl, err := catalog.DecodeTable(p.Value)
		if err != nil {
			return nil, err
		}
		names = append(names, tbl.Name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateTable validates tbl and writes its schema record (spec.md §3.2,
// §4.6).
func (t *Transaction) CreateTable(tbl *catalog.Table) error {
	if err := tbl.Validate(); err != nil {
		return err
	}
	if _, exists, err := t.GetTable(tbl.Name); err != nil {
		return err
	} else if exists {
		return errs.Internal("table %q already exists", tbl.Name)
	}
	return t.txn.Set(keyTable(tbl.Name), tbl.Encode())
}

// DropTable deletes every row of the table (cascading index cleanup) then
// its schema record.
func (t *Transaction) DropTable(name string) error {
	tbl, err := t.MustGetTable(name)
	if err != nil {
		return err
	}
	rows, err := t.Scan(name, nil)
	if err != nil {
		return err
	}
	pkIdx := primaryKeyIndex(tbl)
	for _, row := range rows {
		if err := t.DeleteRow(name, row[pkIdx]); err != nil {
			return err
		}
	}
	return t.txn.Delete(keyTable(name))
}

func primaryKeyIndex(tbl *catalog.Table) int {
	_, idx := tbl.PrimaryKey()
	return idx
}

// typeCheckCell enforces spec.md §4.6's create_row type check: Null is
// only allowed for nullable columns, otherwise the value's DataType must
// match the column's.
func typeCheckCell(col catalog.Column, v value.Value) error {
	if v.IsNull() {
		if !col.Nullable {
			return errs.Internal("column %q cannot be NULL", col.Name)
		}
		return nil
	}
	dt, ok := v.GetDataType()
	if !ok || dt != col.DataType {
		return errs.Internal("column %q expects type %s", col.Name, col.DataType)
	}
	return nil
}

// CreateRow type-checks row against tbl's columns, rejects a primary-key
// conflict, writes the row, and maintains every indexed column's Index
// entry (spec.md §4.6 create_row).
func (t *Transaction) CreateRow(tableName string, row []value.Value) error {
	tbl, err := t.MustGetTable(tableName)
	if err != nil {
		return err
	}
	if len(row) != len(tbl.Columns) {
		return errs.Internal("row has %d values, table %q has %d columns", len(row), tableName, len(tbl.Columns))
	}
	for i, col := range tbl.Columns {
		if err := typeCheckCell(col, row[i]); err != nil {
			return err
		}
	}
	pkIdx := primaryKeyIndex(tbl)
	pk := row[pkIdx]

	if _, ok, err := t.txn.Get(keyRow(tableName, pk)); err != nil {
		return err
	} else if ok {
		return errs.Internal("primary key conflict")
	}

	if err := t.txn.Set(keyRow(tableName, pk), encodeRow(row)); err != nil {
		return err
	}

	for _, col := range tbl.IndexedColumns() {
		colIdx := -1
		for i, c := range tbl.Columns {
			if c.Name == col.Name {
				colIdx = i
				break
			}
		}
		if err := t.addToIndex(tableName, col.Name, row[colIdx], pk); err != nil {
			return err
		}
	}
	return nil
}

// LoadIndex returns the set of primary keys currently stored under one
// secondary-index entry.
func (t *Transaction) LoadIndex(tableName, col string, v value.Value) ([]value.Value, error) {
	raw, ok, err := t.txn.Get(keyIndex(tableName, col, v))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodePKSet(raw)
}

// SaveIndex overwrites one secondary-index entry's PK set.
func (t *Transaction) SaveIndex(tableName, col string, v value.Value, pks []value.Value) error {
	if len(pks) == 0 {
		return t.txn.Delete(keyIndex(tableName, col, v))
	}
	return t.txn.Set(keyIndex(tableName, col, v), encodePKSet(pks))
}

func (t *Transaction) addToIndex(tableName, col string, colValue, pk value.Value) error {
	pks, err := t.LoadIndex(tableName, col, colValue)
	if err != nil {
		return err
	}
	for _, existing := range pks {
		if value.Equal(existing, pk) {
			return nil
		}
	}
	pks = append(pks, pk)
	return t.SaveIndex(tableName, col, colValue, pks)
}

func (t *Transaction) removeFromIndex(tableName, col string, colValue, pk value.Value) error {
	pks, err := t.LoadIndex(tableName, col, colValue)
	if err != nil {
		return err
	}
	out := pks[:0]
	for _, existing := range pks {
		if !value.Equal(existing, pk) {
			out = append(out, existing)
		}
	}
	return t.SaveIndex(tableName, col, colValue, out)
}

// ReadRowByPK reads one row by primary key.
func (t *Transaction) ReadRowByPK(tableName string, pk value.Value) ([]value.Value, bool, error) {
	raw, ok, err := t.txn.Get(keyRow(tableName, pk))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	row, err := decodeRow(raw)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Filter evaluates a row and reports whether it should be included in a
// Scan's result.
type Filter func(row []value.Value) (bool, error)

// Scan prefix-scans every row of tableName, applying an optional filter,
// in encoded-PK order (spec.md §4.6 scan).
func (t *Transaction) Scan(tableName string, filter Filter) ([][]value.Value, error) {
	pairs, err := t.txn.PrefixScan(prefixRow(tableName))
	if err != nil {
		return nil, err
	}
	var out [][]value.Value
	for _, p := range pairs {
		row, err := decodeRow(p.Value)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			ok, err := filter(row)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// UpdateRow replaces the row at oldPK with newRow, relocating its Row key
// if the primary key changed, and keeping every indexed column's Index
// entry in sync with any value change (spec.md §4.6 update_row).
func (t *Transaction) UpdateRow(tableName string, oldPK value.Value, newRow []value.Value) error {
	tbl, err := t.MustGetTable(tableName)
	if err != nil {
		return err
	}
	for i, col := range tbl.Columns {
		if err := typeCheckCell(col, newRow[i]); err != nil {
			return err
		}
	}

	oldRow, ok, err := t.ReadRowByPK(tableName, oldPK)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Internal("row with primary key %s does not exist in table %q", oldPK.String(), tableName)
	}

	pkIdx := primaryKeyIndex(tbl)
	newPK := newRow[pkIdx]

	for _, col := range tbl.IndexedColumns() {
		colIdx := -1
		for i, c := range tbl.Columns {
			if c.Name == col.Name {
				colIdx = i
				break
			}
		}
		oldVal, newVal := oldRow[colIdx], newRow[colIdx]
		if !value.Equal(oldVal, newVal) {
			if err := t.removeFromIndex(tableName, col.Name, oldVal, oldPK); err != nil {
				return err
			}
			if err := t.addToIndex(tableName, col.Name, newVal, newPK); err != nil {
				return err
			}
		} else if !value.Equal(oldPK, newPK) {
			if err := t.removeFromIndex(tableName, col.Name, oldVal, oldPK); err != nil {
				return err
			}
			if err := t.addToIndex(tableName, col.Name, newVal, newPK); err != nil {
				return err
			}
		}
	}

	if !value.Equal(oldPK, newPK) {
		if err := t.txn.Delete(keyRow(tableName, oldPK)); err != nil {
			return err
		}
	}
	return t.txn.Set(keyRow(tableName, newPK), encodeRow(newRow))
}

// DeleteRow removes a row and its index entries.
func (t *Transaction) DeleteRow(tableName string, pk value.Value) error {
	tbl, err := t.MustGetTable(tableName)
	if err != nil {
		return err
	}
	row, ok, err := t.ReadRowByPK(tableName, pk)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Internal("row with primary key %s does not exist in table %q", pk.String(), tableName)
	}
	for _, col := range tbl.IndexedColumns() {
		colIdx := -1
		for i, c := range tbl.Columns {
			if c.Name == col.Name {
				colIdx = i
				break
			}
		}
		if err := t.removeFromIndex(tableName, col.Name, row[colIdx], pk); err != nil {
			return err
		}
	}
	return t.txn.Delete(keyRow(tableName, pk))
}
