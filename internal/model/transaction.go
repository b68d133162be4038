package model

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// TypeUpdate is the ledger transaction type carrying software updates.
const TypeUpdate int16 = 8

// Update transaction subtypes, ordered by urgency.
const (
	SubtypeCriticalUpdate int16 = iota
	SubtypeImportantUpdate
	SubtypeMinorUpdate
)

// Transaction is a ledger transaction as stored in ledger_transaction.
// The update status store only keeps a reference to its ID.
type Transaction struct {
	ID         int64
	Type       int16
	Subtype    int16
	Height     int32
	Timestamp  int32
	Attachment []byte
	FullHash   []byte
}

// IsUpdate reports whether the transaction announces a software update.
func (t *Transaction) IsUpdate() bool {
	return t.Type == TypeUpdate
}

// ComputeFullHash returns the BLAKE2b-256 digest of the canonical encoding:
// id, type, subtype, height and timestamp big-endian, followed by the attachment.
func (t *Transaction) ComputeFullHash() []byte {
	buf := make([]byte, 0, 20+len(t.Attachment))
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.ID))
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.Type))
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.Subtype))
	buf = binary.BigEndian.AppendUint32(buf, uint32(t.Height))
	buf = binary.BigEndian.AppendUint32(buf, uint32(t.Timestamp))
	buf = append(buf, t.Attachment...)

	sum := blake2b.Sum256(buf)
	return sum[:]
}

// Verify returns true if FullHash matches the transaction content.
func (t *Transaction) Verify() bool {
	return len(t.FullHash) > 0 && bytes.Equal(t.FullHash, t.ComputeFullHash())
}
