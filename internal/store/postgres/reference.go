package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"
)

// ReferenceStore implements store.ReferenceStore on tbl_bank and tbl_branch.
type ReferenceStore struct {
	db *sql.DB
}

func NewReferenceStore(db *sql.DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

var _ store.ReferenceStore = (*ReferenceStore)(nil)

func (s *ReferenceStore) ListBanks(ctx context.Context) ([]models.Bank, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, value, created_at FROM tbl_bank ORDER BY value`)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bank, 0)
	for rows.Next() {
		var b models.Bank
		if err := rows.Scan(&b.ID, &b.Value, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) FindBank(ctx context.Context, id int64) (*models.Bank, error) {
	var b models.Bank
	err := s.db.QueryRowContext(ctx, `SELECT id, value, created_at FROM tbl_bank WHERE id = $1`, id).
		Scan(&b.ID, &b.Value, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find bank %d: %w", id, err)
	}
	return &b, nil
}

func (s *ReferenceStore) CountBanks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tbl_bank`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count banks: %w", err)
	}
	return n, nil
}

func (s *ReferenceStore) ListBranches(ctx context.Context, bankID int64) ([]models.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, value, bank_id, created_at
		FROM tbl_branch
		WHERE bank_id = $1
		ORDER BY value`, bankID)
	if err != nil {
		return nil, fmt.Errorf("list branches for bank %d: %w", bankID, err)
	}
	defer rows.Close()

	out := make([]models.Branch, 0)
	for rows.Next() {
		var br models.Branch
		if err := rows.Scan(&br.ID, &br.Value, &br.BankID, &br.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, br)
	}
	return out, rows.Err()
}

func (s *ReferenceStore) FindBranch(ctx context.Context, id int64) (*models.Branch, error) {
	var br models.Branch
	err := s.db.QueryRowContext(ctx, `SELECT id, value, bank_id, created_at FROM tbl_branch WHERE id = $1`, id).
		Scan(&br.ID, &br.Value, &br.BankID, &br.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find branch %d: %w", id, err)
	}
	return &br, nil
}

func (s *ReferenceStore) InsertBankWithBranches(ctx context.Context, bank string, branches []string) (*models.Bank, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var b models.Bank
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tbl_bank (value) VALUES ($1)
		RETURNING id, value, created_at`, bank).
		Scan(&b.ID, &b.Value, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert bank %s: %w", bank, err)
	}

	for _, branch := range branches {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tbl_branch (value, bank_id) VALUES ($1, $2)`, branch, b.ID); err != nil {
			return nil, fmt.Errorf("insert branch %s for %s: %w", branch, bank, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed tx: %w", err)
	}
	return &b, nil
}
