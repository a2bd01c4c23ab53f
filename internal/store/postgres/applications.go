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

const applicationColumns = `id, bank_name, branch_name, account_name, account_number,
	proof_of_bank_account, status, created_at, updated_at`

// ApplicationStore implements store.ApplicationStore on tbl_application.
type ApplicationStore struct {
	db *sql.DB
}

func NewApplicationStore(db *sql.DB) *ApplicationStore {
	return &ApplicationStore{db: db}
}

var _ store.ApplicationStore = (*ApplicationStore)(nil)

func (s *ApplicationStore) Insert(ctx context.Context, app *models.Application) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tbl_application (
			bank_name, branch_name, account_name, account_number, proof_of_bank_account, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+applicationColumns,
		app.BankName,
		app.BranchName,
		app.AccountName,
		app.AccountNumber,
		app.ProofOfBankAccount,
		string(app.Status),
	)

	out, err := scanApplication(row)
	if err != nil {
		if database.IsUniqueViolation(err, "uq_application_account_number") {
			return nil, fmt.Errorf("insert application %s: %w", app.AccountNumber, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert application %s: %w", app.AccountNumber, err)
	}
	return out, nil
}

func (s *ApplicationStore) FindByID(ctx context.Context, id int64) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM tbl_application
		WHERE id = $1`, id)
	return s.findOne(row, fmt.Sprintf("id %d", id))
}

func (s *ApplicationStore) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM tbl_application
		WHERE account_number = $1`, accountNumber)
	return s.findOne(row, "account "+accountNumber)
}

func (s *ApplicationStore) findOne(row *sql.Row, what string) (*models.Application, error) {
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find application by %s: %w", what, err)
	}
	return app, nil
}

func (s *ApplicationStore) ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tbl_application WHERE account_number = $1
		)`, accountNumber).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account number %s: %w", accountNumber, err)
	}
	return exists, nil
}

func (s *ApplicationStore) List(ctx context.Context) ([]models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM tbl_application
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		app    models.Application
		proof  sql.NullString
		status string
	)
	if err := row.Scan(
		&app.ID,
		&app.BankName,
		&app.BranchName,
		&app.AccountName,
		&app.AccountNumber,
		&proof,
		&status,
		&app.CreatedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := models.ParseApplicationStatus(status)
	if err != nil {
		return nil, err
	}
	app.Status = parsed
	if proof.Valid {
		app.ProofOfBankAccount = &proof.String
	}
	return &app, nil
}
