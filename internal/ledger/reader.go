package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"concierge/internal/core"
)

// Wire shapes for the bank JSON document. Only the fields the engine
// consumes are decoded; everything else in the document is ignored.
type (
	bankDocument struct {
		User bankUser `json:"user"`
	}

	bankUser struct {
		Accounts []bankAccount `json:"accounts"`
	}

	bankAccount struct {
		AccountType  string            `json:"account_type"`
		Nickname     string            `json:"nickname"`
		Transactions []bankTransaction `json:"transactions"`
		Recurring    []bankRecurring   `json:"recurring_payments"`
	}

	bankTransaction struct {
		TransactionID string        `json:"transaction_id"`
		CreatedAt     string        `json:"created_at"`
		PostedAt      string        `json:"posted_at"`
		Amount        float64       `json:"amount"`
		Currency      string        `json:"currency"`
		Type          string        `json:"type"`
		Description   string        `json:"description"`
		Merchant      *bankMerchant `json:"merchant"`
		Category      string        `json:"category"`
	}

	bankMerchant struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	}

	bankRecurring struct {
		Name       string  `json:"name"`
		Amount     float64 `json:"amount"`
		Frequency  string  `json:"frequency"`
		NextCharge string  `json:"next_charge"`
	}
)

// ParseSnapshot decodes a bank document and flattens every account's
// transactions and recurring payments into one snapshot, tagging each
// record with its owning account label. A document that fails to decode
// or lacks user.accounts yields an error; callers that prefer degradation
// fall back to an empty snapshot explicitly.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var doc bankDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("decode bank document: %w", err)
	}

	var snap Snapshot
	for _, acct := range doc.User.Accounts {
		label := accountLabel(acct)
		for _, t := range acct.Transactions {
			snap.Transactions = append(snap.Transactions, Transaction{
				ID:               t.TransactionID,
				CreatedAt:        parseWhen(t.CreatedAt),
				PostedAt:         parseWhen(t.PostedAt),
				Amount:           t.Amount,
				Currency:         t.Currency,
				Kind:             strings.ToLower(t.Type),
				Description:      t.Description,
				MerchantName:     merchantName(t.Merchant),
				MerchantCategory: merchantCategory(t.Merchant),
				Category:         t.Category,
				AccountLabel:     label,
			})
		}
		for _, r := range acct.Recurring {
			snap.Recurring = append(snap.Recurring, RecurringCharge{
				AccountLabel: label,
				Name:         r.Name,
				Amount:       r.Amount,
				Frequency:    r.Frequency,
				NextCharge:   r.NextCharge,
			})
		}
	}
	return snap, nil
}

func accountLabel(acct bankAccount) string {
	if acct.Nickname != "" {
		return acct.Nickname
	}
	return acct.AccountType
}

func merchantName(m *bankMerchant) string {
	if m == nil {
		return ""
	}
	return m.Name
}

func merchantCategory(m *bankMerchant) string {
	if m == nil {
		return ""
	}
	return m.Category
}

// parseWhen parses a record timestamp, degrading to the zero time on
// failure; records without a usable timestamp are excluded by every
// window filter downstream.
func parseWhen(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	parsed, err := core.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// FileSource reads the bank document from disk on every snapshot request.
type FileSource struct {
	Path string
}

func (f FileSource) Snapshot(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read ledger file %s: %w", f.Path, err)
	}
	return ParseSnapshot(data)
}

// InlineSource wraps a document already carried inside a request payload.
type InlineSource struct {
	Data []byte
}

func (i InlineSource) Snapshot(ctx context.Context) (Snapshot, error) {
	return ParseSnapshot(i.Data)
}
