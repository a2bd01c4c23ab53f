package application

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"
	"acquisition-ledger/internal/store/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fixtures
// ==========================

type fixture struct {
	svc  *Service
	apps *memory.ApplicationStore
	refs *memory.ReferenceStore
}

// newFixture seeds two banks: bank 1 owns branches 1 and 2, bank 2 owns 3 and 4.
func newFixture(t *testing.T, cache *redis.Client) *fixture {
	t.Helper()
	refs := memory.NewReferenceStore()
	_, err := refs.InsertBankWithBranches(context.Background(), "Equity Bank", []string{"Main Branch", "Westlands Branch"})
	require.NoError(t, err)
	_, err = refs.InsertBankWithBranches(context.Background(), "Family Bank", []string{"Main Branch", "Kisumu Branch"})
	require.NoError(t, err)

	apps := memory.NewApplicationStore()
	return &fixture{
		svc:  NewService(apps, refs, cache, time.Minute, logger.NewTestLogger(t)),
		apps: apps,
		refs: refs,
	}
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		BankID:        1,
		BranchID:      2,
		BankName:      "Equity Bank",
		BranchName:    "Westlands Branch",
		AccountName:   "Mama Mboga Stores",
		AccountNumber: "ACC001",
		Status:        "SUBMITTED",
	}
}

// ==========================
// Submit
// ==========================

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t, nil)

	app, err := f.svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotZero(t, app.ID)
	assert.Equal(t, models.ApplicationStatusSubmitted, app.Status)
	assert.Equal(t, "Westlands Branch", app.BranchName)
	assert.False(t, app.CreatedAt.IsZero())
}

func TestSubmit_StatusSelection(t *testing.T) {
	tests := []struct {
		status string
		want   models.ApplicationStatus
	}{
		{"SUBMITTED", models.ApplicationStatusSubmitted},
		{"submitted", models.ApplicationStatusSubmitted},
		{"DRAFT", models.ApplicationStatusDraft},
		{"pending", models.ApplicationStatusDraft},
		{"", models.ApplicationStatusDraft},
	}

	for i, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := newFixture(t, nil)
			req := validRequest()
			req.Status = tt.status
			req.AccountNumber = "ACC10" + string(rune('0'+i))

			app, err := f.svc.Submit(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, app.Status)
		})
	}
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		code   apperrors.ErrorCode
	}{
		{"unknown bank", func(r *SubmitRequest) { r.BankID = 99 }, apperrors.ErrCodeBankNotFound},
		{"unknown branch", func(r *SubmitRequest) { r.BranchID = 99 }, apperrors.ErrCodeInvalidBranch},
		{"branch of another bank", func(r *SubmitRequest) { r.BranchID = 3 }, apperrors.ErrCodeInvalidBranch},
		{"missing bank id", func(r *SubmitRequest) { r.BankID = 0 }, apperrors.ErrCodeValidationFailed},
		{"blank account number", func(r *SubmitRequest) { r.AccountNumber = "  " }, apperrors.ErrCodeValidationFailed},
		{"blank account name", func(r *SubmitRequest) { r.AccountName = "" }, apperrors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.svc.Submit(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)

			list, _ := f.apps.List(context.Background())
			assert.Empty(t, list)
		})
	}
}

func TestSubmit_DuplicateAccountNumber(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	second := validRequest()
	second.AccountName = "Someone Else"
	_, err = f.svc.Submit(context.Background(), second)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateAccountNumber))

	list, err := f.apps.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "Mama Mboga Stores", list[0].AccountName)
}

// ==========================
// Queries
// ==========================

func TestGetAndList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	saved, err := f.svc.Submit(ctx, validRequest())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "ACC001", got.AccountNumber)

	byAcct, err := f.svc.GetByAccountNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byAcct.ID)

	_, err = f.svc.Get(ctx, 404)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeApplicationNotFound))

	_, err = f.svc.GetByAccountNumber(ctx, "ACC999")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeApplicationNotFound))
}

// ==========================
// Eligibility lookup
// ==========================

func TestFindByAccountNumber_NotFoundPassesThrough(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.FindByAccountNumber(context.Background(), "ACC999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindByAccountNumber_CachesSubmitted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newFixture(t, client)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, validRequest())
	require.NoError(t, err)

	app, err := f.svc.FindByAccountNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusSubmitted, app.Status)
	assert.True(t, mr.Exists("app:acct:ACC001"))
	assert.Equal(t, time.Minute, mr.TTL("app:acct:ACC001"))

	f.apps.FindHook = func(string) error { return errors.New("store must not be read") }
	cached, err := f.svc.FindByAccountNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, app.ID, cached.ID)
	assert.Equal(t, models.ApplicationStatusSubmitted, cached.Status)
}

func TestFindByAccountNumber_DraftNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f := newFixture(t, client)
	ctx := context.Background()

	req := validRequest()
	req.Status = "DRAFT"
	_, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	app, err := f.svc.FindByAccountNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
	assert.False(t, mr.Exists("app:acct:ACC001"))
}

func TestFindByAccountNumber_CacheMissReadsStore(t *testing.T) {
	client, mock := redismock.NewClientMock()
	f := newFixture(t, client)
	ctx := context.Background()

	req := validRequest()
	req.Status = "DRAFT"
	_, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	mock.ExpectGet("app:acct:ACC001").RedisNil()

	app, err := f.svc.FindByAccountNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, "ACC001", app.AccountNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByAccountNumber_CacheErrorFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	f := newFixture(t, client)
	ctx := context.Background()

	req := validRequest()
	req.Status = "DRAFT"
	_, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	mock.ExpectGet("app:acct:ACC001").SetErr(errors.New("connection refused"))

	app, err := f.svc.FindByAccountNumber(ctx, "ACC001")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusDraft, app.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByAccountNumber_StoreErrorReturned(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("connection reset")
	f.apps.FindHook = func(string) error { return boom }

	_, err := f.svc.FindByAccountNumber(context.Background(), "ACC001")
	assert.ErrorIs(t, err, boom)
}
