package txn

import (
	"encoding/binary"

	"kvsql/internal/catalog"
	"kvsql/internal/errs"
	"kvsql/internal/value"
)

// encodeRow and decodeRow serialize a Row (spec.md §3.2: an ordered
// sequence of Values matching its table's column order) as a
// self-describing binary body, reusing catalog's value codec.
func encodeRow(row []value.Value) []byte {
	var buf []byte
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(row)))
	buf = append(buf, countBuf[:]...)
	for _, v := range row {
		buf = catalog.PutValue(buf, v)
	}
	return buf
}

func decodeRow(b []byte) ([]value.Value, error) {
	if len(b) < 4 {
		return nil, errs.Internal("txn: truncated row value count")
	}
	count := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	row := make([]value.Value, 0, count)
	for i := uint32(0); i < count; i++ {
		v, rest, err := catalog.GetValue(b)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
		b = rest
	}
	return row, nil
}

// encodePKSet and decodePKSet serialize the set of primary keys stored as
// the value of one secondary-index entry (spec.md §3.3's Index key).
func encodePKSet(pks []value.Value) []byte {
	return encodeRow(pks)
}

func decodePKSet(b []byte) ([]value.Value, error) {
	return decodeRow(b)
}
