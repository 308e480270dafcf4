package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Transactions (read-only snapshot from the wallet store)
// ============================================================

// TransferCategory is the reserved category for inter-wallet transfers.
const TransferCategory = "Transfer"

// Transaction is a single wallet movement.
// Amount is signed: positive = inflow, negative = outflow.
type Transaction struct {
	ID                  string          `json:"id,omitempty"`
	WalletID            string          `json:"walletId,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	PaidAt              time.Time       `json:"paidAt"`
	Category            string          `json:"category"`
	DestinationWalletID *string         `json:"destinationWalletId,omitempty"`
	Description         string          `json:"description,omitempty"`
}

// IsTransfer reports whether the transaction moves funds to another wallet.
func (t Transaction) IsTransfer() bool {
	return t.DestinationWalletID != nil
}

// TransactionFilter narrows the snapshot a source returns.
// Zero values mean "no restriction".
type TransactionFilter struct {
	WalletIDs []string
	From      time.Time // inclusive
	To        time.Time // exclusive
}

// Matches reports whether t falls inside the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if !f.From.IsZero() && t.PaidAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.PaidAt.Before(f.To) {
		return false
	}
	if len(f.WalletIDs) == 0 {
		return true
	}
	for _, id := range f.WalletIDs {
		if id == t.WalletID {
			return true
		}
	}
	return false
}
