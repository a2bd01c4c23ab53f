package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the ledger state of a transaction. Success -> Reversed is
// the only edge; Failed and Reversed are terminal.
type TransactionStatus string

const (
	TransactionStatusSuccess  TransactionStatus = "SUCCESS"
	TransactionStatusFailed   TransactionStatus = "FAILED"
	TransactionStatusReversed TransactionStatus = "REVERSED"
)

func (s TransactionStatus) Label() string {
	switch s {
	case TransactionStatusSuccess:
		return "Success"
	case TransactionStatusFailed:
		return "Failed"
	case TransactionStatusReversed:
		return "Reversed"
	default:
		return string(s)
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusSuccess && next == TransactionStatusReversed
}

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusFailed || s == TransactionStatusReversed
}

func ParseTransactionStatus(v string) (TransactionStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case string(TransactionStatusSuccess):
		return TransactionStatusSuccess, nil
	case string(TransactionStatusFailed):
		return TransactionStatusFailed, nil
	case string(TransactionStatusReversed):
		return TransactionStatusReversed, nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", v)
	}
}

// ReversalMarker separates the original narration from the reversal annotation.
const ReversalMarker = " - REVERSED: "

// ReversedNarration appends the reversal annotation, keeping the original text intact.
func ReversedNarration(narration, reason string) string {
	return narration + ReversalMarker + reason
}

type Transaction struct {
	ID            int64             `json:"id"`
	TransactionID string            `json:"transactionId"`
	AccountNumber string            `json:"accountNumber"`
	Amount        decimal.Decimal   `json:"amount"`
	Narration     string            `json:"narration"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
}
