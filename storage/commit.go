package storage

import (
	"fmt"
	"time"

	"github.com/tinylib/msgp/msgp"
)

// Commit describes one committed version of a dataset.
type Commit struct {
	Seq     uint64    // 1 for the first commit of a dataset
	ID      string    // globally unique commit identifier
	Parent  string    // ID of the previous commit, empty for the first
	Message string    // user supplied description
	Rows    uint64    // number of records visible at this version
	Time    time.Time // when the commit was made
}

func (c Commit) String() string {
	return fmt.Sprintf("commit %d %s (%d records) %s: %s", c.Seq, c.ID, c.Rows,
		c.Time.Format(time.RFC3339), c.Message)
}

// MarshalMsg implements msgp.Marshaler
func (c *Commit) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, c.Msgsize())
	o = msgp.AppendArrayHeader(o, 6)
	o = msgp.AppendUint64(o, c.Seq)
	o = msgp.AppendString(o, c.ID)
	o = msgp.AppendString(o, c.Parent)
	o = msgp.AppendString(o, c.Message)
	o = msgp.AppendUint64(o, c.Rows)
	o = msgp.AppendTime(o, c.Time)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (c *Commit) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var sz uint32
	sz, bts, err = msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 6 {
		err = msgp.ArrayError{Wanted: 6, Got: sz}
		return
	}
	if c.Seq, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
		return
	}
	if c.ID, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	if c.Parent, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	if c.Message, bts, err = msgp.ReadStringBytes(bts); err != nil {
		return
	}
	if c.Rows, bts, err = msgp.ReadUint64Bytes(bts); err != nil {
		return
	}
	if c.Time, bts, err = msgp.ReadTimeBytes(bts); err != nil {
		return
	}
	o = bts
	return
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (c *Commit) Msgsize() int {
	return msgp.ArrayHeaderSize + 2*msgp.Uint64Size + msgp.TimeSize +
		3*msgp.StringPrefixSize + len(c.ID) + len(c.Parent) + len(c.Message)
}
