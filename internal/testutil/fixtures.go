package testutil

import (
	"strconv"

	"github.com/udisondev/updstatus/internal/model"
)

// UpdateTransaction returns a hashed update transaction with the given ID.
// Each call returns a fresh value, so callers may mutate it.
func UpdateTransaction(id int64) *model.Transaction {
	t := &model.Transaction{
		ID:         id,
		Type:       model.TypeUpdate,
		Subtype:    model.SubtypeImportantUpdate,
		Height:     int32(1000 + id),
		Timestamp:  int32(86400 + id),
		Attachment: []byte("platform=linux;arch=amd64;version=1.0." + strconv.FormatInt(id, 10)),
	}
	t.FullHash = t.ComputeFullHash()
	return t
}
