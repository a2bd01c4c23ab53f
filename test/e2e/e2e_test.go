//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acquisition-ledger/internal/application"
	"acquisition-ledger/internal/common/config"
	"acquisition-ledger/internal/common/database"
	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/ledger"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/reference"
	"acquisition-ledger/internal/store/postgres"
)

var (
	pg  *database.PostgresClient
	rdb *database.RedisClient
	cfg *config.Config
)

func TestMain(m *testing.M) {
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	pg, err = database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		panic(fmt.Sprintf("postgres connection failed: %v", err))
	}
	if err := database.Migrate(pg.DB, cfg.Database.Postgres.Database, logger.NewNoOpLogger()); err != nil {
		panic(fmt.Sprintf("migration failed: %v", err))
	}
	rdb = database.NewRedis(cfg.Database.Redis)

	code := m.Run()

	rdb.Close()
	pg.Close()
	os.Exit(code)
}

type services struct {
	ledger *ledger.Service
	apps   *application.Service
	refs   *reference.Service
}

func newServices(t *testing.T) *services {
	t.Helper()
	log := logger.NewTestLogger(t)
	refStore := postgres.NewReferenceStore(pg.DB)

	refs := reference.NewService(refStore, rdb.Client, time.Minute, log)
	_, err := refs.SeedIfEmpty(context.Background())
	require.NoError(t, err)

	apps := application.NewService(postgres.NewApplicationStore(pg.DB), refStore, rdb.Client, time.Minute, log)
	return &services{
		ledger: ledger.NewService(postgres.NewTransactionStore(pg.DB), apps, log),
		apps:   apps,
		refs:   refs,
	}
}

// submitApplication registers a fresh account number on the first seeded
// bank and branch.
func submitApplication(t *testing.T, s *services, status string) string {
	t.Helper()
	ctx := context.Background()

	banks, err := s.refs.ListBanks(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, banks)
	branches, err := s.refs.ListBranches(ctx, banks[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, branches)

	account := "E2E" + uuid.NewString()[:8]
	_, err = s.apps.Submit(ctx, application.SubmitRequest{
		BankID:        banks[0].ID,
		BranchID:      branches[0].ID,
		BankName:      banks[0].Value,
		BranchName:    branches[0].Value,
		AccountName:   "E2E Merchant",
		AccountNumber: account,
		Status:        status,
	})
	require.NoError(t, err)
	return account
}

func TestLedgerLifecycle(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	account := submitApplication(t, s, "SUBMITTED")

	tx, err := s.ledger.CreateTransaction(ctx, ledger.CreateRequest{
		AccountNumber: account,
		Amount:        decimal.RequireFromString("100.00"),
		Narration:     "Payment for goods",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, tx.Status)

	res, err := s.ledger.ReverseTransaction(ctx, ledger.ReverseRequest{TransactionID: tx.TransactionID, Reason: "Customer request"})
	require.NoError(t, err)
	assert.Equal(t, "Payment for goods - REVERSED: Customer request", res.Transaction.Narration)

	history, err := s.ledger.History(ctx, account)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionStatusReversed, history[0].Status)
	assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestDraftAccountIsRejected(t *testing.T) {
	s := newServices(t)
	account := submitApplication(t, s, "DRAFT")

	_, err := s.ledger.CreateTransaction(context.Background(), ledger.CreateRequest{
		AccountNumber: account,
		Amount:        decimal.NewFromInt(5),
		Narration:     "x",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAccountNotEligible))

	history, err := s.ledger.History(context.Background(), account)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConcurrentReversalsSucceedOnce(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	account := submitApplication(t, s, "SUBMITTED")

	tx, err := s.ledger.CreateTransaction(ctx, ledger.CreateRequest{
		AccountNumber: account,
		Amount:        decimal.NewFromInt(20),
		Narration:     "race",
	})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ledger.ReverseTransaction(ctx, ledger.ReverseRequest{
				TransactionID: tx.TransactionID,
				Reason:        fmt.Sprintf("attempt %d", i),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyReversed), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestDuplicateAccountNumber(t *testing.T) {
	s := newServices(t)
	account := submitApplication(t, s, "DRAFT")

	banks, err := s.refs.ListBanks(context.Background())
	require.NoError(t, err)
	branches, err := s.refs.ListBranches(context.Background(), banks[0].ID)
	require.NoError(t, err)

	_, err = s.apps.Submit(context.Background(), application.SubmitRequest{
		BankID:        banks[0].ID,
		BranchID:      branches[0].ID,
		AccountName:   "Someone Else",
		AccountNumber: account,
		Status:        "SUBMITTED",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateAccountNumber))
}
