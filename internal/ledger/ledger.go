// Package ledger loads and normalizes the bank dataset consumed by the
// analytics engine. The input is a JSON document shaped as
// user.accounts[].transactions[] plus user.accounts[].recurring_payments[];
// the package flattens it into request-scoped value objects and applies
// defensive defaults instead of validating the schema.
package ledger

import (
	"context"
	"time"
)

const (
	KindDebit  = "debit"
	KindCredit = "credit"
)

type (
	// Transaction is one normalized ledger record, tagged with the label
	// of the account it came from. Read-only once materialized.
	Transaction struct {
		ID               string
		CreatedAt        time.Time
		PostedAt         time.Time
		Amount           float64
		Currency         string
		Kind             string
		Description      string
		MerchantName     string
		MerchantCategory string
		Category         string
		AccountLabel     string
	}

	// RecurringCharge is a scheduled payment attached to an account.
	// NextCharge is zero when the schedule does not announce one.
	RecurringCharge struct {
		AccountLabel string  `json:"account"`
		Name         string  `json:"name"`
		Amount       float64 `json:"amount"`
		Frequency    string  `json:"frequency"`
		NextCharge   string  `json:"next_charge,omitempty"`
	}

	// Snapshot is the flattened dataset for one request.
	Snapshot struct {
		Transactions []Transaction
		Recurring    []RecurringCharge
	}

	// Source materializes a snapshot on demand. Implementations include
	// the file reader, inline request payloads and the SQLite store.
	Source interface {
		Snapshot(ctx context.Context) (Snapshot, error)
	}
)

// EffectiveTime is the admission timestamp: posted time, falling back to
// created time when the record never posted.
func (t Transaction) EffectiveTime() time.Time {
	if !t.PostedAt.IsZero() {
		return t.PostedAt
	}
	return t.CreatedAt
}

// IsDebit reports whether the record is admissible for spend aggregation.
// The kind tag is the admission filter regardless of the amount's sign.
func (t Transaction) IsDebit() bool {
	return t.Kind == KindDebit
}

// IsEmpty reports whether the snapshot carries no data at all.
func (s Snapshot) IsEmpty() bool {
	return len(s.Transactions) == 0 && len(s.Recurring) == 0
}
