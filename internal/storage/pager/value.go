package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ───────────────────────────────────────────────────────────────────────────
// Value codec
// ───────────────────────────────────────────────────────────────────────────
//
// A Value is a tagged union over the three primitive column kinds the index
// understands: signed 32-bit integers, bounded-length UTF-8 text, and a
// packed date/time. Every encoding is self-describing — Decode reports how
// many bytes it consumed so values can be concatenated into framed rows
// without a separate length table.

// Kind discriminates the primitive type carried by a Value.
type Kind uint8

const (
	KindInt      Kind = 0
	KindText     Kind = 1
	KindDateTime Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindText:
		return "text"
	case KindDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MaxTextLen is the maximum number of UTF-8 bytes a Text value may hold.
const MaxTextLen = 8192

var (
	// ErrInvalidUTF8 is returned when decoding a Text value whose payload
	// is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("pager: invalid utf8 in text value")
	// ErrInvalidByteLen is returned when a decode call is given fewer
	// bytes than its format requires.
	ErrInvalidByteLen = errors.New("pager: invalid byte length")
	// ErrTextTooLong is returned by NewText when the string exceeds MaxTextLen.
	ErrTextTooLong = errors.New("pager: text exceeds maximum length")
)

// DateTime is a packed calendar timestamp with second resolution.
type DateTime struct {
	Year, Month, Day     uint32
	Hour, Minute, Second uint32
}

// Value is a tagged primitive column value.
type Value struct {
	Kind     Kind
	Int      int32
	Text     string
	DateTime DateTime
}

// NewInt wraps a signed 32-bit integer.
func NewInt(n int32) Value { return Value{Kind: KindInt, Int: n} }

// NewText wraps a UTF-8 string, rejecting one longer than MaxTextLen bytes.
func NewText(s string) (Value, error) {
	if len(s) > MaxTextLen {
		return Value{}, ErrTextTooLong
	}
	return Value{Kind: KindText, Text: s}, nil
}

// NewDateTime wraps a calendar timestamp.
func NewDateTime(dt DateTime) Value { return Value{Kind: KindDateTime, DateTime: dt} }

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindText:
		return v.Text == o.Text
	case KindDateTime:
		return v.DateTime == o.DateTime
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindText:
		return v.Text
	case KindDateTime:
		dt := v.DateTime
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second)
	default:
		return "<invalid>"
	}
}

// ── Integer ──────────────────────────────────────────────────────────────

// EncodeInt32 writes n as 4 bytes, little-endian, two's complement.
func EncodeInt32(n int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b
}

// DecodeInt32 reads a 4-byte little-endian integer, returning the value
// and the number of bytes consumed.
func DecodeInt32(b []byte) (int32, int, error) {
	if len(b) < 4 {
		return 0, 0, ErrInvalidByteLen
	}
	return int32(binary.LittleEndian.Uint32(b)), 4, nil
}

// ── Text ─────────────────────────────────────────────────────────────────

// EncodeText writes a 4-byte little-endian length prefix followed by the
// UTF-8 bytes of s.
func EncodeText(s string) []byte {
	b := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(b[:4], uint32(len(s)))
	copy(b[4:], s)
	return b
}

// DecodeText reads a length-prefixed UTF-8 string.
func DecodeText(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, ErrInvalidByteLen
	}
	n := int(binary.LittleEndian.Uint32(b[:4]))
	if len(b) < 4+n {
		return "", 0, ErrInvalidByteLen
	}
	payload := b[4 : 4+n]
	if !utf8.Valid(payload) {
		return "", 0, ErrInvalidUTF8
	}
	return string(payload), 4 + n, nil
}

// ── DateTime ─────────────────────────────────────────────────────────────

// EncodeDateTime packs year/month/day into one 4-byte field and
// hour/minute/second into another, both little-endian.
func EncodeDateTime(dt DateTime) []byte {
	b := make([]byte, 8)
	dateEnc := dt.Year*10000 + dt.Month*100 + dt.Day
	timeEnc := dt.Hour*10000 + dt.Minute*100 + dt.Second
	binary.LittleEndian.PutUint32(b[0:4], dateEnc)
	binary.LittleEndian.PutUint32(b[4:8], timeEnc)
	return b
}

// DecodeDateTime reverses EncodeDateTime.
func DecodeDateTime(b []byte) (DateTime, int, error) {
	if len(b) < 8 {
		return DateTime{}, 0, ErrInvalidByteLen
	}
	dateEnc := binary.LittleEndian.Uint32(b[0:4])
	timeEnc := binary.LittleEndian.Uint32(b[4:8])
	dt := DateTime{
		Year:   dateEnc / 10000,
		Month:  (dateEnc % 10000) / 100,
		Day:    dateEnc % 100,
		Hour:   timeEnc / 10000,
		Minute: (timeEnc % 10000) / 100,
		Second: timeEnc % 100,
	}
	return dt, 8, nil
}

// ── Value ────────────────────────────────────────────────────────────────

// EncodeValue prepends a 1-byte kind discriminant to the inner encoding.
func EncodeValue(v Value) []byte {
	var inner []byte
	switch v.Kind {
	case KindInt:
		inner = EncodeInt32(v.Int)
	case KindText:
		inner = EncodeText(v.Text)
	case KindDateTime:
		inner = EncodeDateTime(v.DateTime)
	default:
		panic(fmt.Sprintf("pager: unknown value kind %d", v.Kind))
	}
	out := make([]byte, 1+len(inner))
	out[0] = byte(v.Kind)
	copy(out[1:], inner)
	return out
}

// DecodeValue reads a kind-discriminated value, returning the value and
// the number of bytes consumed (including the discriminant byte).
func DecodeValue(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, ErrInvalidByteLen
	}
	kind := Kind(b[0])
	switch kind {
	case KindInt:
		n, sz, err := DecodeInt32(b[1:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindInt, Int: n}, 1 + sz, nil
	case KindText:
		s, sz, err := DecodeText(b[1:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindText, Text: s}, 1 + sz, nil
	case KindDateTime:
		dt, sz, err := DecodeDateTime(b[1:])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: KindDateTime, DateTime: dt}, 1 + sz, nil
	default:
		return Value{}, 0, fmt.Errorf("pager: unknown value kind %d", kind)
	}
}

// ── Row ──────────────────────────────────────────────────────────────────

// Row is an ordered sequence of column values.
type Row []Value

// EncodeRow writes a 4-byte little-endian element count followed by the
// concatenation of each element's encoding.
func EncodeRow(row Row) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(len(row)))
	for _, v := range row {
		out = append(out, EncodeValue(v)...)
	}
	return out
}

// DecodeRow reverses EncodeRow, returning the row and the number of bytes
// consumed.
func DecodeRow(b []byte) (Row, int, error) {
	if len(b) < 4 {
		return nil, 0, ErrInvalidByteLen
	}
	n := int(binary.LittleEndian.Uint32(b[:4]))
	off := 4
	row := make(Row, n)
	for i := 0; i < n; i++ {
		v, sz, err := DecodeValue(b[off:])
		if err != nil {
			return nil, 0, err
		}
		row[i] = v
		off += sz
	}
	return row, off, nil
}

// RowEqual reports whether two rows have equal length and element-wise values.
func RowEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
