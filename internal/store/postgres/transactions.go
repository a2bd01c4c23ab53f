package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"acquisition-ledger/internal/common/database"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"
)

const transactionColumns = `id, transaction_id, account_number, amount, narration, status, created_at`

// TransactionStore implements store.TransactionStore on tbl_transaction_history.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

var _ store.TransactionStore = (*TransactionStore)(nil)

func (s *TransactionStore) Insert(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tbl_transaction_history (transaction_id, account_number, amount, narration, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+transactionColumns,
		tx.TransactionID, tx.AccountNumber, tx.Amount, tx.Narration, string(tx.Status),
	)

	out, err := scanTransaction(row)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("insert transaction %s: %w", tx.TransactionID, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert transaction %s: %w", tx.TransactionID, err)
	}
	return out, nil
}

func (s *TransactionStore) FindByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM tbl_transaction_history
		WHERE transaction_id = $1`, transactionID)

	out, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find transaction %s: %w", transactionID, err)
	}
	return out, nil
}

func (s *TransactionStore) ListByAccountNumber(ctx context.Context, accountNumber string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM tbl_transaction_history
		WHERE account_number = $1
		ORDER BY created_at DESC, id DESC`, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountNumber, err)
	}
	defer rows.Close()

	out := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *TransactionStore) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tbl_transaction_history WHERE transaction_id = $1
		)`, transactionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction %s: %w", transactionID, err)
	}
	return exists, nil
}

// MarkReversed only matches rows still in SUCCESS, so of two concurrent
// reversals exactly one sees a row come back.
func (s *TransactionStore) MarkReversed(ctx context.Context, transactionID, reason string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tbl_transaction_history
		SET status = $2, narration = narration || $3
		WHERE transaction_id = $1 AND status = $4
		RETURNING `+transactionColumns,
		transactionID,
		string(models.TransactionStatusReversed),
		models.ReversalMarker+reason,
		string(models.TransactionStatusSuccess),
	)

	out, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reverse transaction %s: %w", transactionID, store.ErrConflict)
		}
		return nil, fmt.Errorf("reverse transaction %s: %w", transactionID, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		tx     models.Transaction
		status string
	)
	if err := row.Scan(
		&tx.ID,
		&tx.TransactionID,
		&tx.AccountNumber,
		&tx.Amount,
		&tx.Narration,
		&status,
		&tx.CreatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := models.ParseTransactionStatus(status)
	if err != nil {
		return nil, err
	}
	tx.Status = parsed
	return &tx, nil
}
