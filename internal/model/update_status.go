package model

// UpdateStatus is the single persisted record of the most recent update
// transaction applied to the node.
type UpdateStatus struct {
	Transaction *Transaction
	Updated     bool // true once the update finished installing
}

// NewUpdateStatus creates a status for the given transaction.
func NewUpdateStatus(tx *Transaction, updated bool) *UpdateStatus {
	return &UpdateStatus{Transaction: tx, Updated: updated}
}

// TransactionID returns the referenced transaction ID, or 0 if none is set.
func (s *UpdateStatus) TransactionID() int64 {
	if s == nil || s.Transaction == nil {
		return 0
	}
	return s.Transaction.ID
}
