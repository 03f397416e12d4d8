package catalog

import (
	"encoding/binary"
	"math"

	"kvsql/internal/errs"
	"kvsql/internal/value"
)

// Table.Encode and DecodeTable implement the self-describing binary format used to
// persist a Table's schema record under its Table(name) key (spec.md
// §3.3). This is independent of internal/codec's order-preserving key
// codec — spec.md §4.6 only requires it be the inverse of itself.

func PutString(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, s...)
	return buf
}

func GetString(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, errs.Internal("catalog: truncated string length")
	}
	n := binary.BigEndian.Uint32(b[0:4])
	b = b[4:]
	if uint32(len(b)) < n {
		return "", nil, errs.Internal("catalog: truncated string body")
	}
	return string(b[:n]), b[n:], nil
}

func putValueTyped(buf []byte, v *value.Value) []byte {
	if v == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return PutValue(buf, *v)
}

func getValueTyped(b []byte) (*value.Value, []byte, error) {
	if len(b) < 1 {
		return nil, nil, errs.Internal("catalog: truncated optional value")
	}
	present := b[0]
	b = b[1:]
	if present == 0 {
		return nil, b, nil
	}
	v, rest, err := GetValue(b)
	if err != nil {
		return nil, nil, err
	}
	return &v, rest, nil
}

func PutValue(buf []byte, v value.Value) []byte {
	switch v.Kind() {
	case value.Null:
		return append(buf, 0)
	case value.Bool:
		b := append(buf, 1)
		if v.AsBool() {
			return append(b, 1)
		}
		return append(b, 0)
	case value.Int:
		b := append(buf, 2)
		var ib [8]byte
		binary.BigEndian.PutUint64(ib[:], uint64(v.AsInt()))
		return append(b, ib[:]...)
	case value.Float:
		b := append(buf, 3)
		var fb [8]byte
		binary.BigEndian.PutUint64(fb[:], math.Float64bits(v.AsFloat()))
		return append(b, fb[:]...)
	case value.String:
		b := append(buf, 4)
		return PutString(b, v.AsString())
	default:
		return append(buf, 0)
	}
}

func GetValue(b []byte) (value.Value, []byte, error) {
	if len(b) < 1 {
		return value.Value{}, nil, errs.Internal("catalog: truncated value tag")
	}
	tag := b[0]
	b = b[1:]
	switch tag {
	case 0:
		return value.NewNull(), b, nil
	case 1:
		if len(b) < 1 {
			return value.Value{}, nil, errs.Internal("catalog: truncated bool value")
		}
		return value.NewBool(b[0] != 0), b[1:], nil
	case 2:
		if len(b) < 8 {
			return value.Value{}, nil, errs.Internal("catalog: truncated int value")
		}
		i := int64(binary.BigEndian.Uint64(b[:8]))
		return value.NewInt(i), b[8:], nil
	case 3:
		if len(b) < 8 {
			return value.Value{}, nil, errs.Internal("catalog: truncated float value")
		}
		bits := binary.BigEndian.Uint64(b[:8])
		return value.NewFloat(math.Float64frombits(bits)), b[8:], nil
	case 4:
		s, rest, err := GetString(b)
		if err != nil {
			return value.Value{}, nil, err
		}
		return value.NewString(s), rest, nil
	default:
		return value.Value{}, nil, errs.Internal("catalog: unknown value tag %d", tag)
	}
}

// Encode serializes a Table's schema for storage under its Table key.
func (t *Table) Encode() []byte {
	var buf []byte
	buf = PutString(buf, t.Name)
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(t.Columns)))
	buf = append(buf, countBuf[:]...)
	for _, c := range t.Columns {
		buf = PutString(buf, c.Name)
		buf = append(buf, byte(c.DataType))
		if c.Nullable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = putValueTyped(buf, c.Default)
		if c.IsPrimaryKey {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		if c.IsIndex {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

// DecodeTable is the exact inverse of Table.Encode.
func DecodeTable(b []byte) (*Table, error) {
	name, b, err := GetString(b)
	if err != nil {
		return nil, err
	}
	if len(b) < 4 {
		return nil, errs.Internal("catalog: truncated column count")
	}
	count := binary.BigEndian.Uint32(b[:4])
	b = b[4:]

	cols := make([]Column, 0, count)
	for i := uint32(0); i < count; i++ {
		var c Column
		c.Name, b, err = GetString(b)
		if err != nil {
			return nil, err
		}
		if len(b) < 1 {
			return nil, errs.Internal("catalog: truncated datatype")
		}
		c.DataType = value.DataType(b[0])
		b = b[1:]
		if len(b) < 1 {
			return nil, errs.Internal("catalog: truncated nullable flag")
		}
		c.Nullable = b[0] != 0
		b = b[1:]
		c.Default, b, err = getValueTyped(b)
		if err != nil {
			return nil, err
		}
		if len(b) < 2 {
			return nil, errs.Internal("catalog: truncated pk/index flags")
		}
		c.IsPrimaryKey = b[0] != 0
		c.IsIndex = b[1] != 0
		b = b[2:]
		cols = append(cols, c)
	}
	return &Table{Name: name, Columns: cols}, nil
}
