// Package memory holds map-backed store implementations with the same
// contracts as the Postgres stores. Hooks allow a caller to inject failures.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"acquisition-ledger/internal/models"
	"acquisition-ledger/internal/store"
)

// TransactionStore is a store.TransactionStore guarded by one mutex, which
// gives MarkReversed the same compare-and-swap behaviour as the SQL update.
type TransactionStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.Transaction
	clock  func() time.Time

	// InsertHook, when set, runs before every insert; a non-nil error aborts it.
	InsertHook func(tx *models.Transaction) error
	// FindHook, when set, runs before every lookup by transaction id.
	FindHook func(transactionID string) error
	// ListHook, when set, runs before every list by account number.
	ListHook func(accountNumber string) error
}

var _ store.TransactionStore = (*TransactionStore)(nil)

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		rows:  map[string]*models.Transaction{},
		clock: time.Now,
	}
}

func (s *TransactionStore) Insert(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertHook != nil {
		if err := s.InsertHook(tx); err != nil {
			return nil, err
		}
	}
	if _, exists := s.rows[tx.TransactionID]; exists {
		return nil, store.ErrConflict
	}

	s.nextID++
	row := *tx
	row.ID = s.nextID
	row.CreatedAt = s.clock().UTC()
	s.rows[row.TransactionID] = &row

	out := row
	return &out, nil
}

func (s *TransactionStore) FindByTransactionID(_ context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindHook != nil {
		if err := s.FindHook(transactionID); err != nil {
			return nil, err
		}
	}
	row, ok := s.rows[transactionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (s *TransactionStore) ListByAccountNumber(_ context.Context, accountNumber string) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListHook != nil {
		if err := s.ListHook(accountNumber); err != nil {
			return nil, err
		}
	}
	out := make([]models.Transaction, 0)
	for _, row := range s.rows {
		if row.AccountNumber == accountNumber {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *TransactionStore) ExistsByTransactionID(_ context.Context, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[transactionID]
	return ok, nil
}

func (s *TransactionStore) MarkReversed(_ context.Context, transactionID, reason string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[transactionID]
	if !ok || row.Status != models.TransactionStatusSuccess {
		return nil, store.ErrConflict
	}
	row.Status = models.TransactionStatusReversed
	row.Narration = models.ReversedNarration(row.Narration, reason)

	out := *row
	return &out, nil
}

// All returns every stored row in insertion order.
func (s *TransactionStore) All() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Transaction, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplicationStore is a store.ApplicationStore keyed by id and account number.
type ApplicationStore struct {
	mu        sync.Mutex
	nextID    int64
	byID      map[int64]*models.Application
	byAccount map[string]int64

	// FindHook, when set, runs before every lookup by account number.
	FindHook func(accountNumber string) error
}

var _ store.ApplicationStore = (*ApplicationStore)(nil)

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{
		byID:      map[int64]*models.Application{},
		byAccount: map[string]int64{},
	}
}

func (s *ApplicationStore) Insert(_ context.Context, app *models.Application) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byAccount[app.AccountNumber]; taken {
		return nil, store.ErrConflict
	}
	s.nextID++
	now := time.Now().UTC()
	row := *app
	row.ID = s.nextID
	row.CreatedAt = now
	row.UpdatedAt = now
	s.byID[row.ID] = &row
	s.byAccount[row.AccountNumber] = row.ID

	out := row
	return &out, nil
}

func (s *ApplicationStore) FindByID(_ context.Context, id int64) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (s *ApplicationStore) FindByAccountNumber(_ context.Context, accountNumber string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindHook != nil {
		if err := s.FindHook(accountNumber); err != nil {
			return nil, err
		}
	}
	id, ok := s.byAccount[accountNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *ApplicationStore) ExistsByAccountNumber(_ context.Context, accountNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byAccount[accountNumber]
	return ok, nil
}

func (s *ApplicationStore) List(_ context.Context) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Application, 0, len(s.byID))
	for _, row := range s.byID {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ReferenceStore is a store.ReferenceStore for banks and branches.
type ReferenceStore struct {
	mu       sync.Mutex
	nextBank int64
	nextBr   int64
	banks    map[int64]models.Bank
	branches map[int64]models.Branch
}

var _ store.ReferenceStore = (*ReferenceStore)(nil)

func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{
		banks:    map[int64]models.Bank{},
		branches: map[int64]models.Branch{},
	}
}

func (s *ReferenceStore) ListBanks(_ context.Context) ([]models.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Bank, 0, len(s.banks))
	for _, b := range s.banks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func (s *ReferenceStore) FindBank(_ context.Context, id int64) (*models.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.banks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (s *ReferenceStore) CountBanks(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.banks)), nil
}

func (s *ReferenceStore) ListBranches(_ context.Context, bankID int64) ([]models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Branch, 0)
	for _, br := range s.branches {
		if br.BankID == bankID {
			out = append(out, br)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func (s *ReferenceStore) FindBranch(_ context.Context, id int64) (*models.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	br, ok := s.branches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &br, nil
}

func (s *ReferenceStore) InsertBankWithBranches(_ context.Context, bank string, branches []string) (*models.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.banks {
		if b.Value == bank {
			return nil, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	s.nextBank++
	b := models.Bank{ID: s.nextBank, Value: bank, CreatedAt: now}
	s.banks[b.ID] = b
	for _, name := range branches {
		s.nextBr++
		s.branches[s.nextBr] = models.Branch{ID: s.nextBr, Value: name, BankID: b.ID, CreatedAt: now}
	}
	return &b, nil
}
