// Package reference serves the read-only bank and branch catalogue.
package reference

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "acquisition-ledger/internal/common/errors"
	"acquisition-ledger/internal/common/logger"
	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"

	"github.com/redis/go-redis/v9"
)

const banksCacheKey = "ref:banks"

// DefaultBranches is the branch set every seeded bank receives.
var DefaultBranches = []string{
	"Main Branch",
	"Westlands Branch",
	"Mombasa Branch",
	"Kisumu Branch",
	"Nakuru Branch",
	"Eldoret Branch",
}

// DefaultBanks is the catalogue loaded into an empty database.
var DefaultBanks = []string{
	"Kenya Commercial Bank (KCB)",
	"Co-operative Bank",
	"Equity Bank",
	"Standard Chartered",
	"Barclays Bank",
	"NCBA Bank",
	"Absa Bank Kenya",
	"I&M Bank",
	"Diamond Trust Bank (DTB)",
	"Family Bank",
}

type Service struct {
	refs   store.ReferenceStore
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewService builds the service. cache may be nil.
func NewService(refs store.ReferenceStore, cache *redis.Client, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		refs:   refs,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "reference"}),
	}
}

// ListBanks returns all banks ordered by name.
func (s *Service) ListBanks(ctx context.Context) ([]models.Bank, error) {
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, banksCacheKey).Result(); err == nil {
			var banks []models.Bank
			if json.Unmarshal([]byte(val), &banks) == nil {
				return banks, nil
			}
		}
	}

	banks, err := s.refs.ListBanks(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to retrieve banks", err)
	}
	if banks == nil {
		banks = []models.Bank{}
	}

	if s.cache != nil {
		if data, err := json.Marshal(banks); err == nil {
			if err := s.cache.Set(ctx, banksCacheKey, data, s.ttl).Err(); err != nil {
				s.logger.Warn("failed to cache bank list", map[string]interface{}{
					"key":   banksCacheKey,
					"error": err,
				})
			}
		}
	}
	return banks, nil
}

func (s *Service) GetBank(ctx context.Context, id int64) (*models.Bank, error) {
	bank, err := s.refs.FindBank(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewBankNotFoundError(id)
		}
		return nil, apperrors.NewInternalError("Failed to retrieve bank", err)
	}
	return bank, nil
}

// ListBranches returns a bank's branches ordered by name. An unknown bank is
// BANK_NOT_FOUND rather than an empty list.
func (s *Service) ListBranches(ctx context.Context, bankID int64) ([]models.Branch, error) {
	if _, err := s.GetBank(ctx, bankID); err != nil {
		return nil, err
	}
	branches, err := s.refs.ListBranches(ctx, bankID)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to retrieve branches", err)
	}
	if branches == nil {
		branches = []models.Branch{}
	}
	return branches, nil
}

func (s *Service) GetBranch(ctx context.Context, id int64) (*models.Branch, error) {
	branch, err := s.refs.FindBranch(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewBranchNotFoundError(id)
		}
		return nil, apperrors.NewInternalError("Failed to retrieve branch", err)
	}
	return branch, nil
}

// SeedIfEmpty loads DefaultBanks with DefaultBranches when no bank exists yet.
// It reports whether anything was written.
func (s *Service) SeedIfEmpty(ctx context.Context) (bool, error) {
	n, err := s.refs.CountBanks(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.Debug("reference data present, skipping seed", map[string]interface{}{"banks": n})
		return false, nil
	}

	for _, name := range DefaultBanks {
		if _, err := s.refs.InsertBankWithBranches(ctx, name, DefaultBranches); err != nil {
			if errors.Is(err, store.ErrConflict) {
				continue
			}
			return false, err
		}
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, banksCacheKey).Err(); err != nil {
			s.logger.Warn("failed to invalidate bank list cache", map[string]interface{}{
				"key":   banksCacheKey,
				"error": err,
			})
		}
	}

	s.logger.Info("reference data seeded", map[string]interface{}{
		"banks":    len(DefaultBanks),
		"branches": len(DefaultBanks) * len(DefaultBranches),
	})
	return true, nil
}
