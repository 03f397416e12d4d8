// Package txn binds spec.md's MVCC transactions to the catalog/row/index
// key layout of §3.3 (C10): the operations executors actually call —
// create/read/update/delete a table, a row, or an index entry — in terms
// of internal/mvcc's user-key get/set/delete/prefix-scan.
package txn

import (
	"kvsql/internal/codec"
	"kvsql/internal/value"
)

// key tags for the catalog/row/index user-key space (spec.md §3.3),
// wrapped in turn by internal/mvcc's own key tags.
const (
	tagTable byte = iota
	tagRow
	tagIndex
)

func keyTable(name string) []byte {
	return codec.NewEncoder().WriteTag(tagTable).WriteString(name).Bytes()
}

func keyRow(table string, pk value.Value) []byte {
	return codec.NewEncoder().WriteTag(tagRow).WriteString(table).WriteValue(pk).Bytes()
}

// prefixRow is a true byte prefix of every Row(table, *) key.
func prefixRow(table string) []byte {
	return codec.NewEncoder().WriteTag(tagRow).WriteString(table).Bytes()
}

func keyIndex(table, col string, v value.Value) []byte {
	return codec.NewEncoder().WriteTag(tagIndex).WriteString(table).WriteString(col).WriteValue(v).Bytes()
}
