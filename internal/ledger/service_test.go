package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"
	"acquisition-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

// ==========================
// Test Helper Functions
// ==========================

type fixture struct {
	svc  *Service
	txs  *memory.TransactionStore
	apps *memory.ApplicationStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	txs := memory.NewTransactionStore()
	apps := memory.NewApplicationStore()
	return &fixture{
		svc:  NewService(txs, apps, logger.NewTestLogger(t), opts...),
		txs:  txs,
		apps: apps,
	}
}

func (f *fixture) addApplication(t *testing.T, account string, status models.ApplicationStatus) {
	t.Helper()
	_, err := f.apps.Insert(context.Background(), &models.Application{
		BankName:      "Equity Bank",
		BranchName:    "Main Branch",
		AccountName:   "Test Merchant",
		AccountNumber: account,
		Status:        status,
	})
	require.NoError(t, err)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok, "expected StandardError, got %T: %v", err, err)
	assert.Equal(t, code, stdErr.Code)
}

type mockProjector struct {
	mock.Mock
}

func (m *mockProjector) Project(ctx context.Context, tx models.Transaction) error {
	return m.Called(tx.TransactionID, tx.Status).Error(0)
}

// ==========================
// End-to-end Scenarios
// ==========================

func TestScenario_CreateReverseQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	created, err := f.svc.CreateTransaction(ctx, CreateRequest{
		AccountNumber: "ACC001",
		Amount:        amount("100.00"),
		Narration:     "invoice 1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, created.Status)
	assert.Equal(t, "100.00", created.Amount.StringFixed(2))
	assert.True(t, created.Amount.Equal(amount("100")))
	assert.False(t, created.CreatedAt.IsZero())

	res, err := f.svc.ReverseTransaction(ctx, ReverseRequest{TransactionID: created.TransactionID, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, "duplicate", res.Reason)
	assert.Equal(t, models.TransactionStatusReversed, res.Transaction.Status)
	assert.Contains(t, res.Transaction.Narration, "invoice 1")
	assert.Contains(t, res.Transaction.Narration, "duplicate")

	history, err := f.svc.History(ctx, "ACC001")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionStatusReversed, history[0].Status)
}

func TestScenario_UnknownAccountWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateTransaction(context.Background(), CreateRequest{
		AccountNumber: "ACC999",
		Amount:        amount("10.00"),
		Narration:     "invoice",
	})

	requireCode(t, err, apperrors.ErrCodeAccountNotFound)
	assert.Empty(t, f.txs.All())
}

// ==========================
// Create Transaction
// ==========================

func TestCreateTransaction_DraftAccountNotEligible(t *testing.T) {
	f := newFixture(t)
	f.addApplication(t, "ACC002", models.ApplicationStatusDraft)

	_, err := f.svc.CreateTransaction(context.Background(), CreateRequest{
		AccountNumber: "ACC002",
		Amount:        amount("10.00"),
		Narration:     "invoice",
	})

	requireCode(t, err, apperrors.ErrCodeAccountNotEligible)
	assert.Empty(t, f.txs.All())
}

func TestCreateTransaction_Validation(t *testing.T) {
	f := newFixture(t)
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	tests := []struct {
		name string
		req  CreateRequest
		want string
	}{
		{"blank account", CreateRequest{AccountNumber: " ", Amount: amount("1"), Narration: "x"}, "accountNumber"},
		{"zero amount", CreateRequest{AccountNumber: "ACC001", Amount: decimal.Zero, Narration: "x"}, "amount"},
		{"negative amount", CreateRequest{AccountNumber: "ACC001", Amount: amount("-3"), Narration: "x"}, "amount"},
		{"three decimals", CreateRequest{AccountNumber: "ACC001", Amount: amount("1.005"), Narration: "x"}, "amount"},
		{"beyond storage precision", CreateRequest{AccountNumber: "ACC001", Amount: amount("1e30"), Narration: "x"}, "amount"},
		{"blank narration", CreateRequest{AccountNumber: "ACC001", Amount: amount("1"), Narration: ""}, "narration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransaction(context.Background(), tt.req)
			requireCode(t, err, apperrors.ErrCodeValidationFailed)
			stdErr, _ := apperrors.AsStandard(err)
			assert.Contains(t, stdErr.Details, tt.want)
		})
	}
	assert.Empty(t, f.txs.All())
}

func TestCreateTransaction_InsertFailureWritesCompensatingRow(t *testing.T) {
	f := newFixture(t)
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	var attempted []string
	f.txs.InsertHook = func(tx *models.Transaction) error {
		attempted = append(attempted, tx.TransactionID)
		if tx.Status == models.TransactionStatusSuccess {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := f.svc.CreateTransaction(context.Background(), CreateRequest{
		AccountNumber: "ACC001",
		Amount:        amount("42.50"),
		Narration:     "invoice 7",
	})

	requireCode(t, err, apperrors.ErrCodeProcessingFailed)
	stdErr, _ := apperrors.AsStandard(err)
	assert.Equal(t, "Transaction processing failed", stdErr.Message)
	assert.False(t, stdErr.Retryable)

	rows := f.txs.All()
	require.Len(t, rows, 1)
	assert.Equal(t, models.TransactionStatusFailed, rows[0].Status)
	assert.Equal(t, "ACC001", rows[0].AccountNumber)
	assert.Equal(t, "invoice 7", rows[0].Narration)
	assert.True(t, rows[0].Amount.Equal(amount("42.50")))

	require.Len(t, attempted, 2)
	assert.NotEqual(t, attempted[0], attempted[1], "compensating row needs a fresh id")
}

func TestCreateTransaction_CompensationFailureIsSwallowed(t *testing.T) {
	log, logs := logger.NewObservedLogger(zapcore.DebugLevel)
	txs := memory.NewTransactionStore()
	apps := memory.NewApplicationStore()
	svc := NewService(txs, apps, log)

	_, err := apps.Insert(context.Background(), &models.Application{AccountNumber: "ACC001", Status: models.ApplicationStatusSubmitted})
	require.NoError(t, err)

	txs.InsertHook = func(tx *models.Transaction) error {
		if tx.Status == models.TransactionStatusSuccess {
			return errors.New("primary failure")
		}
		return errors.New("secondary failure")
	}

	_, err = svc.CreateTransaction(context.Background(), CreateRequest{
		AccountNumber: "ACC001",
		Amount:        amount("1.00"),
		Narration:     "x",
	})

	requireCode(t, err, apperrors.ErrCodeProcessingFailed)
	stdErr, _ := apperrors.AsStandard(err)
	assert.Contains(t, stdErr.Details, "primary failure")
	assert.NotContains(t, stdErr.Details, "secondary failure")
	assert.Empty(t, txs.All())

	warned := logs.FilterMessage("compensating failed-transaction write failed").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	assert.Equal(t, "secondary failure", warned[0].ContextMap()["error"])
}

func TestCreateTransaction_LookupFailureIsProcessingFailure(t *testing.T) {
	f := newFixture(t)
	f.apps.FindHook = func(string) error { return errors.New("connection reset") }

	_, err := f.svc.CreateTransaction(context.Background(), CreateRequest{
		AccountNumber: "ACC001",
		Amount:        amount("5.00"),
		Narration:     "x",
	})

	requireCode(t, err, apperrors.ErrCodeProcessingFailed)
	rows := f.txs.All()
	require.Len(t, rows, 1)
	assert.Equal(t, models.TransactionStatusFailed, rows[0].Status)
}

func TestCreateTransaction_CompensationSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	ctx, cancel := context.WithCancel(context.Background())
	f.txs.InsertHook = func(tx *models.Transaction) error {
		if tx.Status == models.TransactionStatusSuccess {
			cancel()
			return context.Canceled
		}
		return nil
	}

	_, err := f.svc.CreateTransaction(ctx, CreateRequest{AccountNumber: "ACC001", Amount: amount("1"), Narration: "x"})
	requireCode(t, err, apperrors.ErrCodeProcessingFailed)
	require.Len(t, f.txs.All(), 1)
}

func TestCreateTransaction_ProjectsPersistedRows(t *testing.T) {
	p := &mockProjector{}
	p.On("Project", mock.Anything, models.TransactionStatusSuccess).Return(errors.New("es down")).Once()
	p.On("Project", mock.Anything, models.TransactionStatusReversed).Return(nil).Once()

	f := newFixture(t, WithProjector(p))
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	tx, err := f.svc.CreateTransaction(context.Background(), CreateRequest{AccountNumber: "ACC001", Amount: amount("9.99"), Narration: "x"})
	require.NoError(t, err, "projection failures must not fail the ledger")

	_, err = f.svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: tx.TransactionID, Reason: "r"})
	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestService_SpansUseConfiguredTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	f := newFixture(t, WithTracer(tp.Tracer("ledger-test")))
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	_, err := f.svc.CreateTransaction(context.Background(), CreateRequest{AccountNumber: "ACC001", Amount: amount("5"), Narration: "x"})
	require.NoError(t, err)
	_, err = f.svc.GetTransaction(context.Background(), "TX-missing")
	requireCode(t, err, apperrors.ErrCodeTransactionNotFound)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "ledger.CreateTransaction", ended[0].Name())
	assert.Equal(t, "ledger.GetTransaction", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

type sequenceIDs struct{ n int }

func (s *sequenceIDs) NewTransactionID() string {
	s.n++
	return fmt.Sprintf("TXSEQ%04d", s.n)
}

func TestCreateTransaction_UsesConfiguredIDGenerator(t *testing.T) {
	f := newFixture(t, WithIDGenerator(&sequenceIDs{}))
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	first, err := f.svc.CreateTransaction(context.Background(), CreateRequest{AccountNumber: "ACC001", Amount: amount("1"), Narration: "a"})
	require.NoError(t, err)
	second, err := f.svc.CreateTransaction(context.Background(), CreateRequest{AccountNumber: "ACC001", Amount: amount("2"), Narration: "b"})
	require.NoError(t, err)

	assert.Equal(t, "TXSEQ0001", first.TransactionID)
	assert.Equal(t, "TXSEQ0002", second.TransactionID)

	got, err := f.svc.GetTransaction(context.Background(), "TXSEQ0002")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount("2")))
}

// ==========================
// Reverse Transaction
// ==========================

func seedTransaction(t *testing.T, f *fixture, id string, status models.TransactionStatus, narration string) {
	t.Helper()
	_, err := f.txs.Insert(context.Background(), &models.Transaction{
		TransactionID: id,
		AccountNumber: "ACC001",
		Amount:        amount("10.00"),
		Narration:     narration,
		Status:        status,
	})
	require.NoError(t, err)
}

func TestReverseTransaction_Preconditions(t *testing.T) {
	f := newFixture(t)
	seedTransaction(t, f, "TX-FAILED", models.TransactionStatusFailed, "x")
	seedTransaction(t, f, "TX-REVERSED", models.TransactionStatusReversed, "x - REVERSED: y")

	tests := []struct {
		name string
		req  ReverseRequest
		code apperrors.ErrorCode
		msg  string
	}{
		{"unknown id", ReverseRequest{TransactionID: "TX-NOPE", Reason: "r"}, apperrors.ErrCodeTransactionNotFound, "Transaction not found"},
		{"already reversed", ReverseRequest{TransactionID: "TX-REVERSED", Reason: "r"}, apperrors.ErrCodeAlreadyReversed, "Transaction already reversed"},
		{"failed row", ReverseRequest{TransactionID: "TX-FAILED", Reason: "r"}, apperrors.ErrCodeNotReversible, "Only successful transactions can be reversed"},
		{"blank reason", ReverseRequest{TransactionID: "TX-FAILED", Reason: "  "}, apperrors.ErrCodeValidationFailed, "Request validation failed"},
		{"blank id", ReverseRequest{TransactionID: "", Reason: "r"}, apperrors.ErrCodeValidationFailed, "Request validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ReverseTransaction(context.Background(), tt.req)
			requireCode(t, err, tt.code)
			stdErr, _ := apperrors.AsStandard(err)
			assert.Equal(t, tt.msg, stdErr.Message)
		})
	}

	failed, err := f.txs.FindByTransactionID(context.Background(), "TX-FAILED")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, failed.Status)
}

func TestReverseTransaction_SecondReversalRefused(t *testing.T) {
	f := newFixture(t)
	seedTransaction(t, f, "TX1", models.TransactionStatusSuccess, "payment for X")

	first, err := f.svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: "TX1", Reason: "customer request"})
	require.NoError(t, err)

	_, err = f.svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: "TX1", Reason: "again"})
	requireCode(t, err, apperrors.ErrCodeAlreadyReversed)

	after, err := f.svc.GetTransaction(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusReversed, after.Status)
	assert.Equal(t, first.Transaction.Narration, after.Narration)
	assert.NotContains(t, after.Narration, "again")
}

func TestReverseTransaction_NarrationIsAppended(t *testing.T) {
	f := newFixture(t)
	seedTransaction(t, f, "TX1", models.TransactionStatusSuccess, "payment for X")

	res, err := f.svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: "TX1", Reason: "customer request"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Transaction.Narration, "payment for X"))
	assert.Contains(t, res.Transaction.Narration, "customer request")
	assert.Equal(t, "payment for X - REVERSED: customer request", res.Transaction.Narration)
}

func TestReverseTransaction_ConcurrentRequestsReverseOnce(t *testing.T) {
	f := newFixture(t)
	seedTransaction(t, f, "TX1", models.TransactionStatusSuccess, "payment")

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: "TX1", Reason: "dup"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if apperrors.HasCode(err, apperrors.ErrCodeAlreadyReversed) {
				refusals++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, refusals)

	row, err := f.txs.FindByTransactionID(context.Background(), "TX1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(row.Narration, models.ReversalMarker))
}

// racingStore simulates another request reversing the row between the
// precondition read and the guarded update.
type racingStore struct {
	*memory.TransactionStore
}

func (r racingStore) MarkReversed(ctx context.Context, id, reason string) (*models.Transaction, error) {
	if _, err := r.TransactionStore.MarkReversed(ctx, id, "other request"); err != nil {
		return nil, err
	}
	return r.TransactionStore.MarkReversed(ctx, id, reason)
}

func TestReverseTransaction_LostRaceReportsAlreadyReversed(t *testing.T) {
	txs := memory.NewTransactionStore()
	svc := NewService(racingStore{txs}, memory.NewApplicationStore(), logger.NewNoOpLogger())
	_, err := txs.Insert(context.Background(), &models.Transaction{
		TransactionID: "TX1", AccountNumber: "ACC001", Amount: amount("1"), Narration: "n", Status: models.TransactionStatusSuccess,
	})
	require.NoError(t, err)

	_, err = svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: "TX1", Reason: "mine"})
	requireCode(t, err, apperrors.ErrCodeAlreadyReversed)
}

func TestReverseTransaction_StorageFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.txs.FindHook = func(string) error { return errors.New("timeout") }

	_, err := f.svc.ReverseTransaction(context.Background(), ReverseRequest{TransactionID: "TX1", Reason: "r"})
	requireCode(t, err, apperrors.ErrCodeProcessingFailed)
	stdErr, _ := apperrors.AsStandard(err)
	assert.Equal(t, "Transaction reversal failed", stdErr.Message)
	assert.True(t, stdErr.Retryable)
}

// ==========================
// Queries
// ==========================

func TestHistory_NewestFirstAndEmpty(t *testing.T) {
	f := newFixture(t)
	f.addApplication(t, "ACC001", models.ApplicationStatusSubmitted)

	for _, n := range []string{"first", "second", "third"} {
		_, err := f.svc.CreateTransaction(context.Background(), CreateRequest{AccountNumber: "ACC001", Amount: amount("1"), Narration: n})
		require.NoError(t, err)
	}

	history, err := f.svc.History(context.Background(), "ACC001")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "third", history[0].Narration)
	assert.Equal(t, "first", history[2].Narration)

	empty, err := f.svc.History(context.Background(), "ACC404")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestHistory_StorageError(t *testing.T) {
	f := newFixture(t)
	f.txs.ListHook = func(string) error { return errors.New("boom") }

	_, err := f.svc.History(context.Background(), "ACC001")
	requireCode(t, err, apperrors.ErrCodeProcessingFailed)
	stdErr, _ := apperrors.AsStandard(err)
	assert.Equal(t, "Failed to retrieve transaction history", stdErr.Message)
}

func TestGetTransaction_NotFoundDistinctFromSystemError(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetTransaction(context.Background(), "TX404")
	requireCode(t, err, apperrors.ErrCodeTransactionNotFound)

	f.txs.FindHook = func(string) error { return errors.New("boom") }
	_, err = f.svc.GetTransaction(context.Background(), "TX404")
	requireCode(t, err, apperrors.ErrCodeInternal)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}
