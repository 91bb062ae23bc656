package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

// AuditStore is an append-only in-memory audit log.
type AuditStore struct {
	mu      sync.RWMutex
	records []model.AuditRecord
	nextID  uint
}

func NewAuditStore() *AuditStore { return &AuditStore{} }

func (s *AuditStore) Append(_ context.Context, rec *model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	s.records = append(s.records, *rec)
	return nil
}

// Records returns every record in insertion order.
func (s *AuditStore) Records() []model.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AuditRecord(nil), s.records...)
}

func (s *AuditStore) filter(keep func(model.AuditRecord) bool, limit int) []model.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AuditRecord
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *AuditStore) ListByCart(_ context.Context, cartID string) ([]model.AuditRecord, error) {
	return s.filter(func(r model.AuditRecord) bool { return r.CartID != nil && *r.CartID == cartID }, 0), nil
}

func (s *AuditStore) ListByExecution(_ context.Context, executionID string) ([]model.AuditRecord, error) {
	return s.filter(func(r model.AuditRecord) bool { return r.ExecutionID == executionID }, 0), nil
}

func (s *AuditStore) ListByRule(_ context.Context, ruleID string, limit int) ([]model.AuditRecord, error) {
	return s.filter(func(r model.AuditRecord) bool { return r.RuleID == ruleID }, limit), nil
}

// CartResultStore keeps the latest VAT state per cart.
type CartResultStore struct {
	mu     sync.RWMutex
	states map[string]model.CartVATState
}

func NewCartResultStore() *CartResultStore {
	return &CartResultStore{states: make(map[string]model.CartVATState)}
}

func (s *CartResultStore) SaveCartVATState(_ context.Context, state *model.CartVATState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.CartID] = *state
	return nil
}

func (s *CartResultStore) GetCartVATState(_ context.Context, cartID string) (*model.CartVATState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[cartID]
	if !ok {
		return nil, domain.ErrCartStateNotFound
	}
	return &st, nil
}

// TxManager runs fn directly; each in-memory store locks on its own.
type TxManager struct{}

func (TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
