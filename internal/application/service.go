// Package application manages merchant applications and answers the ledger's
// eligibility lookups through a Redis read-through cache.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/common/metrics"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "app:acct:"

type SubmitRequest struct {
	BankID             int64
	BranchID           int64
	BankName           string
	BranchName         string
	AccountName        string
	AccountNumber      string
	ProofOfBankAccount *string
	Status             string
}

type Service struct {
	apps   store.ApplicationStore
	refs   store.ReferenceStore
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewService builds the service. cache may be nil, in which case every
// eligibility lookup goes to the store.
func NewService(apps store.ApplicationStore, refs store.ReferenceStore, cache *redis.Client, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		apps:   apps,
		refs:   refs,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "application"}),
	}
}

// Submit validates the bank and branch selection and stores a new application.
// The status is Submitted only when the request asks for it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Application, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	if _, err := s.refs.FindBank(ctx, req.BankID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewBankNotFoundError(req.BankID)
		}
		return nil, submitFailed(err)
	}

	branch, err := s.refs.FindBranch(ctx, req.BranchID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, submitFailed(err)
	}
	if branch == nil || branch.BankID != req.BankID {
		return nil, apperrors.NewInvalidBranchError(req.BankID, req.BranchID)
	}

	exists, err := s.apps.ExistsByAccountNumber(ctx, req.AccountNumber)
	if err != nil {
		return nil, submitFailed(err)
	}
	if exists {
		return nil, apperrors.NewDuplicateAccountNumberError(req.AccountNumber)
	}

	saved, err := s.apps.Insert(ctx, &models.Application{
		BankName:           req.BankName,
		BranchName:         req.BranchName,
		AccountName:        req.AccountName,
		AccountNumber:      req.AccountNumber,
		ProofOfBankAccount: req.ProofOfBankAccount,
		Status:             models.RequestedApplicationStatus(req.Status),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperrors.NewDuplicateAccountNumberError(req.AccountNumber)
		}
		return nil, submitFailed(err)
	}

	s.logger.Info("application submitted", map[string]interface{}{
		"applicationId": saved.ID,
		"accountNumber": saved.AccountNumber,
		"status":        string(saved.Status),
	})
	return saved, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Application, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewApplicationNotFoundError("id: " + strconv.FormatInt(id, 10))
		}
		return nil, apperrors.NewInternalError("Failed to retrieve application", err)
	}
	return app, nil
}

func (s *Service) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Application, error) {
	app, err := s.apps.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewApplicationNotFoundError("accountNumber: " + accountNumber)
		}
		return nil, apperrors.NewInternalError("Failed to retrieve application", err)
	}
	return app, nil
}

func (s *Service) List(ctx context.Context) ([]models.Application, error) {
	apps, err := s.apps.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to retrieve applications", err)
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// FindByAccountNumber resolves an account for the ledger. Submitted
// applications are cached; Draft ones are always read from the store so a
// later status change is seen immediately. Cache failures fall through to the
// store. Store errors, including store.ErrNotFound, are returned unchanged.
func (s *Service) FindByAccountNumber(ctx context.Context, accountNumber string) (*models.Application, error) {
	if app, ok := s.cached(ctx, accountNumber); ok {
		return app, nil
	}

	app, err := s.apps.FindByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if app.Status.IsEligible() {
		s.remember(ctx, app)
	}
	return app, nil
}

func (s *Service) cached(ctx context.Context, accountNumber string) (*models.Application, bool) {
	if s.cache == nil {
		return nil, false
	}
	val, err := s.cache.Get(ctx, cacheKeyPrefix+accountNumber).Result()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.EligibilityCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.EligibilityCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("eligibility cache read failed", map[string]interface{}{
			"accountNumber": accountNumber,
			"error":         err,
		})
		return nil, false
	}

	var app models.Application
	if err := json.Unmarshal([]byte(val), &app); err != nil {
		metrics.EligibilityCacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.EligibilityCacheLookups.WithLabelValues("hit").Inc()
	return &app, true
}

func (s *Service) remember(ctx context.Context, app *models.Application) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(app)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+app.AccountNumber, data, s.ttl).Err(); err != nil {
		s.logger.Warn("eligibility cache write failed", map[string]interface{}{
			"accountNumber": app.AccountNumber,
			"error":         err,
		})
	}
}

func submitFailed(err error) error {
	return apperrors.NewInternalError("Application submission failed", err)
}

func validateSubmit(req SubmitRequest) error {
	var problems []string
	if req.BankID <= 0 {
		problems = append(problems, "bankId: is required")
	}
	if req.BranchID <= 0 {
		problems = append(problems, "branchId: is required")
	}
	if strings.TrimSpace(req.AccountName) == "" {
		problems = append(problems, "accountName: must not be blank")
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		problems = append(problems, "accountNumber: must not be blank")
	}
	if len(problems) > 0 {
		return apperrors.NewValidationFailedError(strings.Join(problems, "; "))
	}
	return nil
}
