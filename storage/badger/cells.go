package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/gabbenick/artigo-deeplake/lake"
)

// Key layout.  All multi-byte integers are big endian so keys sort by row.
//
//	0x00 'f'                       format version (semver string)
//	0x00 's'                       schema (Arrow IPC schema message)
//	0x00 'h'                       head commit
//	0x01 seq(8)                    commit entry
//	0x02 column(1) row(8)          cell value
const (
	metadataPrefix byte = 0x00
	commitPrefix   byte = 0x01
	cellPrefix     byte = 0x02
)

var (
	formatKey = []byte{metadataPrefix, 'f'}
	schemaKey = []byte{metadataPrefix, 's'}
	headKey   = []byte{metadataPrefix, 'h'}
)

func commitKey(seq uint64) []byte {
	k := make([]byte, 9)
	k[0] = commitPrefix
	binary.BigEndian.PutUint64(k[1:], seq)
	return k
}

func columnPrefix(col int) []byte {
	return []byte{cellPrefix, byte(col)}
}

func cellKey(col int, row uint64) []byte {
	k := make([]byte, 10)
	k[0] = cellPrefix
	k[1] = byte(col)
	binary.BigEndian.PutUint64(k[2:], row)
	return k
}

func rowFromCellKey(k []byte) (uint64, error) {
	if len(k) != 10 || k[0] != cellPrefix {
		return 0, fmt.Errorf("bad cell key %x", k)
	}
	return binary.BigEndian.Uint64(k[2:]), nil
}

// encodeCell returns the raw value of one column of a record.
func encodeCell(col lake.Column, r *lake.Record) ([]byte, error) {
	switch col.Name {
	case lake.ColumnIDs:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(r.ID))
		return b, nil
	case lake.ColumnImages:
		return r.Image.MarshalMsg(nil)
	case lake.ColumnMasks:
		return r.Mask.MarshalMsg(nil)
	case lake.ColumnSplit:
		return []byte(r.Split), nil
	case lake.ColumnOriginalFilename:
		return []byte(r.OriginalFilename), nil
	default:
		return nil, fmt.Errorf("no record field for column %q", col.Name)
	}
}

// decodeCell sets the field of r corresponding to the column.
func decodeCell(col lake.Column, data []byte, r *lake.Record) error {
	switch col.Name {
	case lake.ColumnIDs:
		if len(data) != 4 {
			return fmt.Errorf("int32 cell has %d bytes", len(data))
		}
		r.ID = int32(binary.LittleEndian.Uint32(data))
	case lake.ColumnImages:
		r.Image = new(lake.Sample)
		if _, err := r.Image.UnmarshalMsg(data); err != nil {
			return err
		}
	case lake.ColumnMasks:
		r.Mask = new(lake.Sample)
		if _, err := r.Mask.UnmarshalMsg(data); err != nil {
			return err
		}
	case lake.ColumnSplit:
		r.Split = lake.Split(data)
	case lake.ColumnOriginalFilename:
		r.OriginalFilename = string(data)
	default:
		return fmt.Errorf("no record field for column %q", col.Name)
	}
	return nil
}
