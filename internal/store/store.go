// Package store declares the persistence contracts used by the ledger and its
// collaborators. Implementations live in subpackages.
package store

import (
	"context"
	"errors"

	"acquisition-ledger/internal/models"
)

var (
	// ErrNotFound is returned by single-record lookups that match nothing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint or a guarded update rejects the write.
	ErrConflict = errors.New("write conflict")
)

// TransactionStore persists ledger transactions.
type TransactionStore interface {
	// Insert stores tx and returns it with the store-assigned id and timestamp.
	Insert(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	// ListByAccountNumber returns newest first. No rows is an empty slice.
	ListByAccountNumber(ctx context.Context, accountNumber string) ([]models.Transaction, error)
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)
	// MarkReversed moves a Success transaction to Reversed and appends the
	// reversal annotation to its narration in one guarded update. It returns
	// ErrConflict when the row is missing or no longer in Success.
	MarkReversed(ctx context.Context, transactionID, reason string) (*models.Transaction, error)
}

// ApplicationStore persists merchant applications.
type ApplicationStore interface {
	// Insert returns ErrConflict when the account number is taken.
	Insert(ctx context.Context, app *models.Application) (*models.Application, error)
	FindByID(ctx context.Context, id int64) (*models.Application, error)
	FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Application, error)
	ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error)
	List(ctx context.Context) ([]models.Application, error)
}

// ReferenceStore persists banks and their branches.
type ReferenceStore interface {
	ListBanks(ctx context.Context) ([]models.Bank, error)
	FindBank(ctx context.Context, id int64) (*models.Bank, error)
	CountBanks(ctx context.Context) (int64, error)
	ListBranches(ctx context.Context, bankID int64) ([]models.Branch, error)
	FindBranch(ctx context.Context, id int64) (*models.Branch, error)
	// InsertBankWithBranches writes a bank and its branches atomically.
	InsertBankWithBranches(ctx context.Context, bank string, branches []string) (*models.Bank, error)
}
