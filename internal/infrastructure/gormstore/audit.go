package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

// AuditStore appends audit rows; rows are never updated.
type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, rec *model.AuditRecord) error {
	return GetDB(ctx, s.db).Create(rec).Error
}

func (s *AuditStore) list(ctx context.Context, limit int, query string, args ...any) ([]model.AuditRecord, error) {
	var records []model.AuditRecord
	q := GetDB(ctx, s.db).Where(query, args...).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

func (s *AuditStore) ListByCart(ctx context.Context, cartID string) ([]model.AuditRecord, error) {
	return s.list(ctx, 0, "cart_id = ?", cartID)
}

func (s *AuditStore) ListByExecution(ctx context.Context, executionID string) ([]model.AuditRecord, error) {
	return s.list(ctx, 0, "execution_id = ?", executionID)
}

func (s *AuditStore) ListByRule(ctx context.Context, ruleID string, limit int) ([]model.AuditRecord, error) {
	return s.list(ctx, limit, "rule_id = ?", ruleID)
}

// CartResultStore upserts the latest VAT state per cart.
type CartResultStore struct {
	db *gorm.DB
}

func NewCartResultStore(db *gorm.DB) *CartResultStore {
	return &CartResultStore{db: db}
}

func (s *CartResultStore) SaveCartVATState(ctx context.Context, state *model.CartVATState) error {
	return GetDB(ctx, s.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(state).Error
}

func (s *CartResultStore) GetCartVATState(ctx context.Context, cartID string) (*model.CartVATState, error) {
	var state model.CartVATState
	if err := GetDB(ctx, s.db).First(&state, "cart_id = ?", cartID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCartStateNotFound, cartID)
		}
		return nil, err
	}
	return &state, nil
}
