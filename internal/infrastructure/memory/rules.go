package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
)

// RuleStore keeps every rule version in memory.
type RuleStore struct {
	mu    sync.RWMutex
	rules []engine.Rule
}

func NewRuleStore(rules ...engine.Rule) *RuleStore {
	s := &RuleStore{}
	s.rules = append(s.rules, rules...)
	return s
}

func (s *RuleStore) ListRules(_ context.Context, entryPoint string) ([]engine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return engine.SelectRules(s.rules, entryPoint), nil
}

func (s *RuleStore) ListVersions(_ context.Context, ruleID string) ([]engine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.Rule
	for _, r := range s.rules {
		if r.RuleID == ruleID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrRuleNotFound, ruleID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *RuleStore) PublishRule(_ context.Context, r engine.Rule) (engine.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 1
	for i := range s.rules {
		if s.rules[i].RuleID != r.RuleID {
			continue
		}
		if s.rules[i].Version >= next {
			next = s.rules[i].Version + 1
		}
		s.rules[i].Active = false
	}
	r.Version = next
	r.Active = true
	s.rules = append(s.rules, r)
	return r, nil
}

func (s *RuleStore) DeactivateRule(_ context.Context, ruleID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].RuleID == ruleID && s.rules[i].Version == version {
			s.rules[i].Active = false
			return nil
		}
	}
	return fmt.Errorf("%w: %s:v%d", domain.ErrRuleNotFound, ruleID, version)
}
