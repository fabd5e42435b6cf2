package pbf

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PrimitiveBlock is one OSMData block as stored on the wire. Coordinates
// and ids keep their raw encoding; delta decoding is left to the caller.
type PrimitiveBlock struct {
	StringTable     [][]byte
	Groups          []PrimitiveGroup
	Granularity     int32
	DateGranularity int32
	LatOffset       int64
	LonOffset       int64
}

// PrimitiveGroup holds one kind of primitive. Relations and changesets
// are skipped while decoding.
type PrimitiveGroup struct {
	Nodes []Node
	Dense *DenseNodes
	Ways  []Way
}

// Node is an individually encoded node with absolute raw coordinates.
type Node struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Lat  int64
	Lon  int64
}

// DenseNodes holds parallel, delta-encoded id/lat/lon arrays.
type DenseNodes struct {
	ID       []int64
	Lat      []int64
	Lon      []int64
	KeysVals []int32
}

// Way references its nodes through delta-encoded ids.
type Way struct {
	ID   int64
	Keys []uint32
	Vals []uint32
	Refs []int64
}

// DecodePrimitiveBlock decodes an uncompressed OSMData block.
func DecodePrimitiveBlock(data []byte) (*PrimitiveBlock, error) {
	block := &PrimitiveBlock{
		Granularity:     100,
		DateGranularity: 1000,
	}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case 1:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			table, err := decodeStringTable(b)
			if err != nil {
				return fmt.Errorf("string table: %w", err)
			}
			block.StringTable = append(block.StringTable, table...)
		case 2:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			group, err := decodeGroup(b)
			if err != nil {
				return fmt.Errorf("primitive group %d: %w", len(block.Groups), err)
			}
			block.Groups = append(block.Groups, group)
		case 17:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			block.Granularity = int32(v)
		case 18:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			block.DateGranularity = int32(v)
		case 19:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			block.LatOffset = int64(v)
		case 20:
			v, err := varintValue(typ, value)
			if err != nil {
				return err
			}
			block.LonOffset = int64(v)
		}
		return nil
	})
	if err != nil {
		return nil, malformed("primitive block", err)
	}
	if block.Granularity <= 0 {
		return nil, malformed(fmt.Sprintf("granularity %d", block.Granularity), nil)
	}
	return block, nil
}

func decodeStringTable(data []byte) ([][]byte, error) {
	var table [][]byte
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		if num != 1 {
			return nil
		}
		b, err := bytesValue(typ, value)
		if err != nil {
			return err
		}
		table = append(table, b)
		return nil
	})
	return table, err
}

func decodeGroup(data []byte) (PrimitiveGroup, error) {
	var group PrimitiveGroup
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case 1:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			node, err := decodeNode(b)
			if err != nil {
				return fmt.Errorf("node %d: %w", len(group.Nodes), err)
			}
			group.Nodes = append(group.Nodes, node)
		case 2:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			dense, err := decodeDense(b)
			if err != nil {
				return fmt.Errorf("dense nodes: %w", err)
			}
			group.Dense = dense
		case 3:
			b, err := bytesValue(typ, value)
			if err != nil {
				return err
			}
			way, err := decodeWay(b)
			if err != nil {
				return fmt.Errorf("way %d: %w", len(group.Ways), err)
			}
			group.Ways = append(group.Ways, way)
		}
		return nil
	})
	return group, err
}

func decodeNode(data []byte) (Node, error) {
	var node Node
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		var err error
		switch num {
		case 1, 8, 9:
			var v uint64
			v, err = varintValue(typ, value)
			if err != nil {
				return err
			}
			switch num {
			case 1:
				node.ID = protowire.DecodeZigZag(v)
			case 8:
				node.Lat = protowire.DecodeZigZag(v)
			case 9:
				node.Lon = protowire.DecodeZigZag(v)
			}
		case 2:
			node.Keys, err = appendUint32s(node.Keys, typ, value)
		case 3:
			node.Vals, err = appendUint32s(node.Vals, typ, value)
		}
		return err
	})
	return node, err
}

func decodeDense(data []byte) (*DenseNodes, error) {
	dense := &DenseNodes{}
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		var err error
		switch num {
		case 1:
			dense.ID, err = appendSint64s(dense.ID, typ, value)
		case 8:
			dense.Lat, err = appendSint64s(dense.Lat, typ, value)
		case 9:
			dense.Lon, err = appendSint64s(dense.Lon, typ, value)
		case 10:
			dense.KeysVals, err = appendInt32s(dense.KeysVals, typ, value)
		}
		return err
	})
	return dense, err
}

func decodeWay(data []byte) (Way, error) {
	var way Way
	err := forEachField(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		var err error
		switch num {
		case 1:
			var v uint64
			v, err = varintValue(typ, value)
			way.ID = int64(v)
		case 2:
			way.Keys, err = appendUint32s(way.Keys, typ, value)
		case 3:
			way.Vals, err = appendUint32s(way.Vals, typ, value)
		case 8:
			way.Refs, err = appendSint64s(way.Refs, typ, value)
		}
		return err
	})
	return way, err
}
