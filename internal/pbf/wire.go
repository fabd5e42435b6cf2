package pbf

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// forEachField walks the top-level fields of one protobuf message. value
// holds the field's encoded value without its tag.
func forEachField(msg []byte, visit func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return protowire.ParseError(n)
		}
		msg = msg[n:]

		m := protowire.ConsumeFieldValue(num, typ, msg)
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		if err := visit(num, typ, msg[:m]); err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		msg = msg[m:]
	}
	return nil
}

func wrongType(want, got protowire.Type) error {
	return fmt.Errorf("wire type %d, expected %d", got, want)
}

func varintValue(typ protowire.Type, value []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, wrongType(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(value)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

func bytesValue(typ protowire.Type, value []byte) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, wrongType(protowire.BytesType, typ)
	}
	v, n := protowire.ConsumeBytes(value)
	if n < 0 {
		return nil, protowire.ParseError(n)
	}
	return v, nil
}

// eachVarint calls fn for every element of a repeated varint field. Both
// the packed encoding and one-element-per-tag encoding are accepted, as a
// conforming protobuf parser must.
func eachVarint(typ protowire.Type, value []byte, fn func(uint64)) error {
	switch typ {
	case protowire.VarintType:
		v, err := varintValue(typ, value)
		if err != nil {
			return err
		}
		fn(v)
		return nil
	case protowire.BytesType:
		packed, err := bytesValue(typ, value)
		if err != nil {
			return err
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(v)
			packed = packed[n:]
		}
		return nil
	default:
		return wrongType(protowire.BytesType, typ)
	}
}

func appendSint64s(dst []int64, typ protowire.Type, value []byte) ([]int64, error) {
	err := eachVarint(typ, value, func(v uint64) {
		dst = append(dst, protowire.DecodeZigZag(v))
	})
	return dst, err
}

func appendInt32s(dst []int32, typ protowire.Type, value []byte) ([]int32, error) {
	err := eachVarint(typ, value, func(v uint64) {
		dst = append(dst, int32(v))
	})
	return dst, err
}

func appendUint32s(dst []uint32, typ protowire.Type, value []byte) ([]uint32, error) {
	err := eachVarint(typ, value, func(v uint64) {
		dst = append(dst, uint32(v))
	})
	return dst, err
}
