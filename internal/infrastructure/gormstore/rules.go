package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
)

type RuleStore struct {
	db *gorm.DB
}

func NewRuleStore(db *gorm.DB) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) ListRules(ctx context.Context, entryPoint string) ([]engine.Rule, error) {
	var records []model.RuleRecord
	err := GetDB(ctx, s.db).
		Where("entry_point = ? AND active = ?", entryPoint, true).
		Order("priority, rule_id, version DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing rules for %s: %w", entryPoint, err)
	}
	rules, err := fromRecords(records)
	if err != nil {
		return nil, err
	}
	return engine.SelectRules(rules, entryPoint), nil
}

func (s *RuleStore) ListVersions(ctx context.Context, ruleID string) ([]engine.Rule, error) {
	var records []model.RuleRecord
	if err := GetDB(ctx, s.db).Where("rule_id = ?", ruleID).Order("version").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrRuleNotFound, ruleID)
	}
	return fromRecords(records)
}

func (s *RuleStore) PublishRule(ctx context.Context, r engine.Rule) (engine.Rule, error) {
	err := GetDB(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		var latest int
		if err := tx.Model(&model.RuleRecord{}).Where("rule_id = ?", r.RuleID).
			Select("COALESCE(MAX(version), 0)").Scan(&latest).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.RuleRecord{}).Where("rule_id = ? AND active = ?", r.RuleID, true).
			Update("active", false).Error; err != nil {
			return err
		}
		r.Version = latest + 1
		r.Active = true
		rec, err := ToRecord(r)
		if err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return engine.Rule{}, fmt.Errorf("publishing rule %s: %w", r.RuleID, err)
	}
	return r, nil
}

func (s *RuleStore) DeactivateRule(ctx context.Context, ruleID string, version int) error {
	res := GetDB(ctx, s.db).Model(&model.RuleRecord{}).
		Where("rule_id = ? AND version = ?", ruleID, version).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s:v%d", domain.ErrRuleNotFound, ruleID, version)
	}
	return nil
}

// ToRecord stores the condition and actions as JSON columns.
func ToRecord(r engine.Rule) (*model.RuleRecord, error) {
	var condition datatypes.JSON
	if r.Condition != nil {
		raw, err := json.Marshal(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("encoding condition of %s: %w", r.Ref(), err)
		}
		condition = raw
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return nil, fmt.Errorf("encoding actions of %s: %w", r.Ref(), err)
	}
	return &model.RuleRecord{
		RuleID:         r.RuleID,
		Version:        r.Version,
		EntryPoint:     r.EntryPoint,
		Priority:       r.Priority,
		Active:         r.Active,
		Condition:      condition,
		Actions:        actions,
		StopProcessing: r.StopProcessing,
		RulesFieldsID:  r.RulesFieldsID,
		Description:    r.Description,
	}, nil
}

func FromRecord(rec model.RuleRecord) (engine.Rule, error) {
	r := engine.Rule{
		RuleID:         rec.RuleID,
		Version:        rec.Version,
		EntryPoint:     rec.EntryPoint,
		Priority:       rec.Priority,
		Active:         rec.Active,
		StopProcessing: rec.StopProcessing,
		RulesFieldsID:  rec.RulesFieldsID,
		Description:    rec.Description,
	}
	if len(rec.Condition) > 0 && string(rec.Condition) != "null" {
		if err := json.Unmarshal(rec.Condition, &r.Condition); err != nil {
			return engine.Rule{}, fmt.Errorf("decoding condition of %s: %w", r.Ref(), err)
		}
	}
	if err := json.Unmarshal(rec.Actions, &r.Actions); err != nil {
		return engine.Rule{}, fmt.Errorf("decoding actions of %s: %w", r.Ref(), err)
	}
	return r, nil
}

func fromRecords(records []model.RuleRecord) ([]engine.Rule, error) {
	var errs []error
	out := make([]engine.Rule, 0, len(records))
	for _, rec := range records {
		r, err := FromRecord(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrRuleConfiguration, errors.Join(errs...))
	}
	return out, nil
}
