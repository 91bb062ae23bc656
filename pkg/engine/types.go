package engine

import (
	"context"

	"github.com/Victor-armando18/service-vat/internal/domain"
	ruleengine "github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/money"
	"github.com/Victor-armando18/service-vat/internal/usecase/runengine"
)

// Inputs supplied by the embedding application.
type (
	User         = model.User
	Address      = model.Address
	CartSnapshot = model.CartSnapshot
	CartItem     = model.CartItem
	Money        = money.Money
	Rate         = money.Rate
)

// Results.
type (
	VATResult    = domain.VATResult
	ItemResult   = domain.ItemResult
	BreakdownRow = domain.BreakdownRow
	Totals       = domain.Totals
	Status       = domain.Status
	AuditRecord  = model.AuditRecord
	RunResult    = runengine.Result
)

// Rules.
type (
	Rule     = ruleengine.Rule
	Action   = ruleengine.Action
	RulePack = ruleengine.RulePack
)

const (
	StatusCalculated    = domain.StatusCalculated
	StatusError         = domain.StatusError
	StatusNotCalculated = domain.StatusNotCalculated

	EntryPointCartCalculateVAT = domain.EntryPointCartCalculateVAT
)

var (
	ParseMoney = money.Parse
	ParseRate  = money.ParseRate
)

// RulePackLoader reads rule packs by name, e.g. from disk.
type RulePackLoader interface {
	Load(ctx context.Context, name string) (*RulePack, error)
}
