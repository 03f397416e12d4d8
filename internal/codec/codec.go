// Package codec implements kvsql's order-preserving key codec (spec.md
// C1): it serializes typed, composite keys to bytes so that lexicographic
// byte order matches logical order and so that encoding a logical prefix
// of a key yields a true byte prefix of the encoding of any extension
// (the "prefix property" that makes KVEngine.PrefixScan work at every
// layer — catalog/row/index keys and MVCC's own key tags alike).
//
// No ordered-key-codec library appears anywhere in the retrieval pack, so
// this is hand-written against encoding/binary; see DESIGN.md.
package codec

import (
	"encoding/binary"
	"math"

	"kvsql/internal/errs"
	"kvsql/internal/value"
)

// terminator bytes that close a variable-width field.
const (
	escByte  byte = 0x00
	escFF    byte = 0xFF
	termByte byte = 0x00
)

// Encoder accumulates the byte encoding of one composite key.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte { return e.buf }

// WriteTag appends a one-byte enum variant tag. Full and prefix encoders
// must agree on tag values so that a prefix encoding is a true byte
// prefix of every extension's full encoding.
func (e *Encoder) WriteTag(tag byte) *Encoder {
	e.buf = append(e.buf, tag)
	return e
}

// WriteBool appends a single 0/1 byte.
func (e *Encoder) WriteBool(b bool) *Encoder {
	if b {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
	return e
}

// WriteUint64 appends the big-endian bytes of an unsigned integer. Raw
// big-endian encoding already yields the correct numeric byte order for
// unsigned values.
func (e *Encoder) WriteUint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// WriteInt64 appends the big-endian bytes of a signed integer with its
// sign bit flipped, so that negative values sort before non-negative ones
// in byte order (spec.md §9's "open question — negative integer
// ordering", resolved in favor of true numeric order).
func (e *Encoder) WriteInt64(v int64) *Encoder {
	return e.WriteUint64(uint64(v) ^ (1 << 63))
}

// WriteFloat64 appends the big-endian raw bit image of a float64. Per
// spec.md §1's non-goals, this does not reproduce IEEE-754 total order —
// it is used for hashing/equality and for the byte order the tests
// exercise, not for a fully monotonic float ordering.
func (e *Encoder) WriteFloat64(f float64) *Encoder {
	return e.WriteUint64(math.Float64bits(f))
}

// writeEscaped appends b with every zero byte escaped as (0x00, 0xFF).
func (e *Encoder) writeEscaped(b []byte) {
	for _, c := range b {
		if c == escByte {
			e.buf = append(e.buf, escByte, escFF)
		} else {
			e.buf = append(e.buf, c)
		}
	}
}

// WriteBytes appends a variable-width byte sequence with its terminator
// (0x00, 0x00), giving both the order property (escaping preserves
// ordering: 0x00 < any other byte still after escaping because the
// escape sequence (0x00,0xFF) never collides with the two-byte
// terminator (0x00,0x00)) and the prefix property.
func (e *Encoder) WriteBytes(b []byte) *Encoder {
	e.writeEscaped(b)
	e.buf = append(e.buf, escByte, termByte)
	return e
}

// WriteBytesPrefix appends a variable-width byte sequence WITHOUT its
// terminator. Use this only for the last field of a key that is itself
// being built as a scan prefix (spec.md §4.1: "last variable-width field
// of a prefix key MAY omit its terminator").
func (e *Encoder) WriteBytesPrefix(b []byte) *Encoder {
	e.writeEscaped(b)
	return e
}

// WriteString appends a UTF-8 string as a terminated byte sequence.
func (e *Encoder) WriteString(s string) *Encoder { return e.WriteBytes([]byte(s)) }

// WriteStringPrefix appends a UTF-8 string without a terminator.
func (e *Encoder) WriteStringPrefix(s string) *Encoder { return e.WriteBytesPrefix([]byte(s)) }

// valueTag enumerates value.Kind as the enum variant byte used inside
// composite keys. Order matches spec.md §3.1's total order category
// boundaries (Null < Bool < numeric < String), though numeric Int/Float
// share a category without sharing a tag: key byte order is only
// guaranteed within one Kind, which is all the catalog/row/index/MVCC
// layers ever need (equality lookups and per-kind range scans).
const (
	tagNull byte = iota
	tagBool
	tagInt
	tagFloat
	tagString
)

// WriteValue appends the tagged encoding of a scalar value.
func (e *Encoder) WriteValue(v value.Value) *Encoder {
	switch v.Kind() {
	case value.Null:
		e.WriteTag(tagNull)
	case value.Bool:
		e.WriteTag(tagBool)
		e.WriteBool(v.AsBool())
	case value.Int:
		e.WriteTag(tagInt)
		e.WriteInt64(v.AsInt())
	case value.Float:
		e.WriteTag(tagFloat)
		e.WriteFloat64(v.AsFloat())
	case value.String:
		e.WriteTag(tagString)
		e.WriteString(v.AsString())
	}
	return e
}

// WriteValuePrefix appends the tagged encoding of a scalar value, omitting
// the terminator of a trailing String payload so the result can be used
// as a scan prefix.
func (e *Encoder) WriteValuePrefix(v value.Value) *Encoder {
	switch v.Kind() {
	case value.Null:
		e.WriteTag(tagNull)
	case value.Bool:
		e.WriteTag(tagBool)
		e.WriteBool(v.AsBool())
	case value.Int:
		e.WriteTag(tagInt)
		e.WriteInt64(v.AsInt())
	case value.Float:
		e.WriteTag(tagFloat)
		e.WriteFloat64(v.AsFloat())
	case value.String:
		e.WriteTag(tagString)
		e.WriteStringPrefix(v.AsString())
	}
	return e
}

// Decoder is the exact inverse of Encoder.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps b for sequential decoding.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

// Done reports whether every byte has been consumed.
func (d *Decoder) Done() bool { return d.pos >= len(d.buf) }

// Remaining returns the unconsumed tail.
func (d *Decoder) Remaining() []byte { return d.buf[d.pos:] }

func (d *Decoder) need(n int) error {
	if len(d.buf)-d.pos < n {
		return errs.Internal("codec: truncated input, need %d bytes, have %d", n, len(d.buf)-d.pos)
	}
	return nil
}

// ReadTag reads a one-byte enum variant tag.
func (d *Decoder) ReadTag() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	t := d.buf[d.pos]
	d.pos++
	return t, nil
}

// ReadBool reads a single 0/1 byte.
func (d *Decoder) ReadBool() (bool, error) {
	if err := d.need(1); err != nil {
		return false, err
	}
	b := d.buf[d.pos] != 0
	d.pos++
	return b, nil
}

// ReadUint64 reads 8 big-endian bytes.
func (d *Decoder) ReadUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

// ReadInt64 reads 8 big-endian bytes and undoes the sign-bit flip.
func (d *Decoder) ReadInt64() (int64, error) {
	u, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return int64(u ^ (1 << 63)), nil
}

// ReadFloat64 reads 8 big-endian bytes as a raw float bit image.
func (d *Decoder) ReadFloat64() (float64, error) {
	u, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// ReadBytes reads an escaped byte sequence up to its (0x00,0x00)
// terminator, translating (0x00,0xFF) back to a literal 0x00.
func (d *Decoder) ReadBytes() ([]byte, error) {
	var out []byte
	for {
		if d.pos >= len(d.buf) {
			return nil, errs.Internal("codec: truncated variable-width field, missing terminator")
		}
		c := d.buf[d.pos]
		if c == escByte {
			if d.pos+1 >= len(d.buf) {
				return nil, errs.Internal("codec: truncated escape sequence")
			}
			next := d.buf[d.pos+1]
			switch next {
			case termByte:
				d.pos += 2
				return out, nil
			case escFF:
				out = append(out, escByte)
				d.pos += 2
			default:
				return nil, errs.Internal("codec: invalid escape sequence 0x00,0x%02x", next)
			}
			continue
		}
		out = append(out, c)
		d.pos++
	}
}

// ReadString reads a terminated byte sequence as a UTF-8 string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadValue reads a tagged scalar value written by WriteValue.
func (d *Decoder) ReadValue() (value.Value, error) {
	tag, err := d.ReadTag()
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case tagNull:
		return value.NewNull(), nil
	case tagBool:
		b, err := d.ReadBool()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(b), nil
	case tagInt:
		i, err := d.ReadInt64()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInt(i), nil
	case tagFloat:
		f, err := d.ReadFloat64()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewFloat(f), nil
	case tagString:
		s, err := d.ReadString()
		if err != nil {
			return value.Value{}, err
		}
		return value.NewString(s), nil
	default:
		return value.Value{}, errs.Internal("codec: unknown value tag %d", tag)
	}
}

// NextPrefix computes the byte-wise "increment" of prefix used to turn a
// prefix scan into a half-open range scan [prefix, NextPrefix(prefix)):
// find the rightmost byte < 0xFF, increment it, truncate what follows. If
// every byte is 0xFF, there is no upper bound (ok is false).
func NextPrefix(prefix []byte) (next []byte, ok bool) {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1], true
		}
	}
	return nil, false
}
