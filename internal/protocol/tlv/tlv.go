// Package tlv carries the optional-field payload of a sync frame.
//
// Field headers (id, type, length) are network order. Numeric values are
// little-endian, matching what game clients write into their packets.
package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"

	crunch "github.com/superwhiskers/crunch/v3"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrInvalidValueLen  = errors.New("tlv: invalid value length")
)

// Type IDs from tlv contract.
const (
	TypeU8     uint8 = 1
	TypeI32    uint8 = 2
	TypeU64    uint8 = 3
	TypeF32Vec uint8 = 4
	TypeBool   uint8 = 5
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, expected)
	}
	return nil
}

func U8(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

func Bool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func I32(id uint16, v int32) Field {
	buf := crunch.NewBuffer()
	buf.Grow(4)
	buf.WriteI32LENext([]int32{v})
	return Field{ID: id, Type: TypeI32, Value: buf.Bytes()}
}

func U64(id uint16, v uint64) Field {
	buf := crunch.NewBuffer()
	buf.Grow(8)
	buf.WriteU64LENext([]uint64{v})
	return Field{ID: id, Type: TypeU64, Value: buf.Bytes()}
}

// F32Vec packs a float vector; an empty vector is a valid zero-length value.
func F32Vec(id uint16, vs []float32) Field {
	if len(vs) == 0 {
		return Field{ID: id, Type: TypeF32Vec, Value: []byte{}}
	}
	buf := crunch.NewBuffer()
	buf.Grow(int64(4 * len(vs)))
	buf.WriteF32LENext(vs)
	return Field{ID: id, Type: TypeF32Vec, Value: buf.Bytes()}
}

func (f Field) AsU8() (uint8, error) {
	if err := MustType(f, TypeU8); err != nil {
		return 0, err
	}
	if len(f.Value) != 1 {
		return 0, fmt.Errorf("%w: u8 field %d has %d bytes", ErrInvalidValueLen, f.ID, len(f.Value))
	}
	return f.Value[0], nil
}

func (f Field) AsBool() (bool, error) {
	if err := MustType(f, TypeBool); err != nil {
		return false, err
	}
	if len(f.Value) != 1 {
		return false, fmt.Errorf("%w: bool field %d has %d bytes", ErrInvalidValueLen, f.ID, len(f.Value))
	}
	switch f.Value[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("tlv: invalid bool value %d in field %d", f.Value[0], f.ID)
	}
}

func (f Field) AsI32() (int32, error) {
	if err := MustType(f, TypeI32); err != nil {
		return 0, err
	}
	if len(f.Value) != 4 {
		return 0, fmt.Errorf("%w: i32 field %d has %d bytes", ErrInvalidValueLen, f.ID, len(f.Value))
	}
	return crunch.NewBuffer(f.Value).ReadI32LENext(1)[0], nil
}

func (f Field) AsU64() (uint64, error) {
	if err := MustType(f, TypeU64); err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, fmt.Errorf("%w: u64 field %d has %d bytes", ErrInvalidValueLen, f.ID, len(f.Value))
	}
	return crunch.NewBuffer(f.Value).ReadU64LENext(1)[0], nil
}

func (f Field) AsF32Vec() ([]float32, error) {
	if err := MustType(f, TypeF32Vec); err != nil {
		return nil, err
	}
	if len(f.Value)%4 != 0 {
		return nil, fmt.Errorf("%w: f32 vector field %d has %d bytes", ErrInvalidValueLen, f.ID, len(f.Value))
	}
	n := len(f.Value) / 4
	if n == 0 {
		return []float32{}, nil
	}
	out := make([]float32, n)
	copy(out, crunch.NewBuffer(f.Value).ReadF32LENext(int64(n)))
	return out, nil
}
