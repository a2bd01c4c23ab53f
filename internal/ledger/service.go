// Package ledger records transactions against eligible merchant accounts and
// reverses them. It is the only writer of transaction records.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/common/metrics"
	"acquisition-ledger/internal/common/validation"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opCreate  = "create"
	opReverse = "reverse"
	opHistory = "history"
	opGet     = "get"
)

// ApplicationLookup resolves an account number to its application. It returns
// store.ErrNotFound when no application carries the number.
type ApplicationLookup interface {
	FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Application, error)
}

// Projector receives every persisted transaction state. Failures are logged only.
type Projector interface {
	Project(ctx context.Context, tx models.Transaction) error
}

type CreateRequest struct {
	AccountNumber string
	Amount        decimal.Decimal
	Narration     string
}

type ReverseRequest struct {
	TransactionID string
	Reason        string
}

// ReversalResult is the reversed record together with the reason supplied.
type ReversalResult struct {
	Transaction *models.Transaction
	Reason      string
}

type Service struct {
	transactions store.TransactionStore
	applications ApplicationLookup
	ids          IDGenerator
	projector    Projector
	logger       logger.Logger
	tracer       trace.Tracer
}

type Option func(*Service)

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

func WithProjector(p Projector) Option {
	return func(s *Service) { s.projector = p }
}

// WithTracer replaces the global tracer used for ledger spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func NewService(transactions store.TransactionStore, applications ApplicationLookup, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		transactions: transactions,
		applications: applications,
		ids:          NewIDGenerator(),
		logger:       log.WithFields(map[string]interface{}{"component": "ledger"}),
		tracer:       otel.Tracer("acquisition-ledger/internal/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTransaction posts a Success transaction for a Submitted account.
//
// Unknown accounts fail with ACCOUNT_NOT_FOUND and Draft accounts with
// ACCOUNT_NOT_ELIGIBLE; neither writes a row. Any other failure writes a
// Failed row under a fresh id for the audit trail and returns
// PROCESSING_FAILED whether or not that write succeeded.
func (s *Service) CreateTransaction(ctx context.Context, req CreateRequest) (tx *models.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.CreateTransaction",
		trace.WithAttributes(attribute.String("account_number", req.AccountNumber)))
	defer s.finish(span, opCreate, time.Now(), &err)

	if verr := validateCreate(req); verr != nil {
		return nil, verr
	}

	app, err := s.applications.FindByAccountNumber(ctx, req.AccountNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewAccountNotFoundError(req.AccountNumber)
		}
		return nil, s.failCreate(ctx, req, err)
	}
	if !app.Status.IsEligible() {
		return nil, apperrors.NewAccountNotEligibleError(req.AccountNumber, string(app.Status))
	}

	saved, err := s.transactions.Insert(ctx, &models.Transaction{
		TransactionID: s.ids.NewTransactionID(),
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Narration:     req.Narration,
		Status:        models.TransactionStatusSuccess,
	})
	if err != nil {
		return nil, s.failCreate(ctx, req, err)
	}

	metrics.TransactionsCreated.WithLabelValues(string(saved.Status)).Inc()
	s.project(ctx, saved)
	s.logger.Info("transaction created", map[string]interface{}{
		"transactionId": saved.TransactionID,
		"accountNumber": saved.AccountNumber,
		"amount":        saved.Amount.StringFixed(2),
	})
	return saved, nil
}

// failCreate writes the compensating Failed row and returns the primary error.
// The write runs detached from ctx cancellation so a dropped client still
// leaves an audit row behind.
func (s *Service) failCreate(ctx context.Context, req CreateRequest, cause error) error {
	log := s.logger.WithFields(map[string]interface{}{
		"accountNumber": req.AccountNumber,
		"cause":         cause,
	})
	log.Error("transaction processing failed", nil)

	failed := &models.Transaction{
		TransactionID: s.ids.NewTransactionID(),
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Narration:     req.Narration,
		Status:        models.TransactionStatusFailed,
	}

	wctx := context.WithoutCancel(ctx)
	saved, err := s.transactions.Insert(wctx, failed)
	if err != nil {
		metrics.CompensationWrites.WithLabelValues("error").Inc()
		log.Warn("compensating failed-transaction write failed", map[string]interface{}{
			"transactionId": failed.TransactionID,
			"error":         err,
		})
		return apperrors.NewProcessingFailedError(cause)
	}

	metrics.CompensationWrites.WithLabelValues("written").Inc()
	metrics.TransactionsCreated.WithLabelValues(string(saved.Status)).Inc()
	s.project(wctx, saved)
	log.Info("failed transaction recorded", map[string]interface{}{
		"transactionId": saved.TransactionID,
	})
	return apperrors.NewProcessingFailedError(cause)
}

// ReverseTransaction moves a Success transaction to Reversed and appends the
// reason to its narration. A transaction is reversed at most once even under
// concurrent requests because the store update is guarded on the Success status.
func (s *Service) ReverseTransaction(ctx context.Context, req ReverseRequest) (res *ReversalResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.ReverseTransaction",
		trace.WithAttributes(attribute.String("transaction_id", req.TransactionID)))
	defer s.finish(span, opReverse, time.Now(), &err)

	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, apperrors.NewValidationFailedError("transactionId: must not be blank")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperrors.NewValidationFailedError("reason: must not be blank")
	}

	current, err := s.transactions.FindByTransactionID(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewTransactionNotFoundError(req.TransactionID)
		}
		return nil, apperrors.NewReversalFailedError(err)
	}
	if err := checkReversible(current); err != nil {
		return nil, err
	}

	updated, err := s.transactions.MarkReversed(ctx, req.TransactionID, req.Reason)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, s.explainLostReversal(ctx, req.TransactionID, err)
		}
		return nil, apperrors.NewReversalFailedError(err)
	}

	metrics.TransactionsReversed.Inc()
	s.project(ctx, updated)
	s.logger.Info("transaction reversed", map[string]interface{}{
		"transactionId": updated.TransactionID,
		"reason":        req.Reason,
	})
	return &ReversalResult{Transaction: updated, Reason: req.Reason}, nil
}

// explainLostReversal re-reads a row whose guarded update matched nothing,
// which means another request changed it after our precondition checks.
func (s *Service) explainLostReversal(ctx context.Context, transactionID string, conflict error) error {
	current, err := s.transactions.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewTransactionNotFoundError(transactionID)
		}
		return apperrors.NewReversalFailedError(err)
	}
	if err := checkReversible(current); err != nil {
		return err
	}
	return apperrors.NewReversalFailedError(conflict)
}

func checkReversible(tx *models.Transaction) error {
	switch {
	case tx.Status == models.TransactionStatusReversed:
		return apperrors.NewAlreadyReversedError(tx.TransactionID)
	case !tx.Status.CanTransitionTo(models.TransactionStatusReversed):
		return apperrors.NewNotReversibleError(tx.TransactionID, string(tx.Status))
	default:
		return nil
	}
}

// History lists an account's transactions newest first. An account without
// transactions, or one that does not exist, yields an empty slice.
func (s *Service) History(ctx context.Context, accountNumber string) (txs []models.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.History",
		trace.WithAttributes(attribute.String("account_number", accountNumber)))
	defer s.finish(span, opHistory, time.Now(), &err)

	txs, err = s.transactions.ListByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, apperrors.NewHistoryFailedError(err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

// GetTransaction returns TRANSACTION_NOT_FOUND for an unknown id and an
// internal error for storage failures.
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (tx *models.Transaction, err error) {
	ctx, span := s.tracer.Start(ctx, "ledger.GetTransaction",
		trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer s.finish(span, opGet, time.Now(), &err)

	tx, err = s.transactions.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewTransactionNotFoundError(transactionID)
		}
		return nil, apperrors.NewInternalError("Failed to retrieve transaction", err)
	}
	return tx, nil
}

func (s *Service) project(ctx context.Context, tx *models.Transaction) {
	if s.projector == nil || tx == nil {
		return
	}
	if err := s.projector.Project(ctx, *tx); err != nil {
		s.logger.Warn("transaction projection failed", map[string]interface{}{
			"transactionId": tx.TransactionID,
			"error":         err,
		})
	}
}

func (s *Service) finish(span trace.Span, op string, started time.Time, errp *error) {
	metrics.LedgerOperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err := *errp; err != nil {
		code := string(apperrors.ErrCodeInternal)
		if stdErr, ok := apperrors.AsStandard(err); ok {
			code = string(stdErr.Code)
		}
		metrics.LedgerFailures.WithLabelValues(op, code).Inc()
		span.SetAttributes(attribute.String("error_code", code))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validateCreate(req CreateRequest) error {
	var problems []string
	if strings.TrimSpace(req.AccountNumber) == "" {
		problems = append(problems, "accountNumber: must not be blank")
	}
	if verr := validation.ValidateAmount(req.Amount); verr != nil {
		problems = append(problems, verr.Field+": "+verr.Message)
	}
	if strings.TrimSpace(req.Narration) == "" {
		problems = append(problems, "narration: must not be blank")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationFailedError(strings.Join(problems, "; "))
	}
	return nil
}
