package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Victor-armando18/service-vat/internal/domain"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/model"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
	"github.com/Victor-armando18/service-vat/internal/usecase/admin"
)

type Handler struct {
	Calculator interfaces.VATCalculator
	Rules      engine.RuleSource
	Registry   *region.Registry
	Audit      interfaces.AuditStore
	RegionOps  *admin.Regions
	RuleOps    *admin.Rules
	Logger     *slog.Logger
}

// Register mounts the routes on e. Admin routes are only mounted when the
// admin use cases are set.
func (h *Handler) Register(e *echo.Echo) {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	e.GET("/health", h.health)
	e.POST("/vat/calculate", h.calculate)
	e.GET("/rules/:entry_point", h.listRules)
	e.GET("/regions/:country", h.lookupRegion)
	if h.Audit != nil {
		e.GET("/audit/executions/:execution_id", h.auditByExecution)
		e.GET("/audit/carts/:cart_id", h.auditByCart)
	}
	if h.RegionOps != nil {
		e.POST("/admin/mappings", h.createMapping)
		e.PUT("/admin/countries/:iso/rate", h.updateCountryRate)
	}
	if h.RuleOps != nil {
		e.POST("/admin/rules", h.publishRule)
		e.DELETE("/admin/rules/:rule_id/versions/:version", h.deactivateRule)
	}
}

type CalculateRequest struct {
	User          *model.User        `json:"user"`
	Cart          model.CartSnapshot `json:"cart"`
	EffectiveDate string             `json:"effective_date,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) calculate(c echo.Context) error {
	var req CalculateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	date, err := optionalDate(req.EffectiveDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	res := h.Calculator.CalculateVAT(c.Request().Context(), req.User, req.Cart, date)
	if res.Status == domain.StatusError {
		h.Logger.Warn("vat calculation failed", "cart_id", req.Cart.ID, "execution_id", res.ExecutionID, "error", res.Error)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) listRules(c echo.Context) error {
	ep := c.Param("entry_point")
	if !engine.IsKnownEntryPoint(ep) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown entry point " + ep})
	}
	rules, err := h.Rules.ListRules(c.Request().Context(), ep)
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) lookupRegion(c echo.Context) error {
	country := strings.ToUpper(c.Param("country"))
	date, err := optionalDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return c.JSON(http.StatusOK, map[string]string{
		"country": country,
		"date":    region.FormatDate(date),
		"region":  h.Registry.LookupRegion(c.Request().Context(), country, date),
	})
}

func (h *Handler) auditByExecution(c echo.Context) error {
	records, err := h.Audit.ListByExecution(c.Request().Context(), c.Param("execution_id"))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) auditByCart(c echo.Context) error {
	records, err := h.Audit.ListByCart(c.Request().Context(), c.Param("cart_id"))
	if err != nil {
		return h.internal(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

type mappingRequest struct {
	CountryISO    string `json:"country_iso"`
	Region        string `json:"region"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

func (h *Handler) createMapping(c echo.Context) error {
	var req mappingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	from, err := region.ParseDate(req.EffectiveFrom)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "effective_from: " + err.Error()})
	}
	mr := admin.MappingRequest{CountryISO: req.CountryISO, RegionCode: req.Region, EffectiveFrom: from}
	if req.EffectiveTo != "" {
		to, err := region.ParseDate(req.EffectiveTo)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "effective_to: " + err.Error()})
		}
		mr.EffectiveTo = &to
	}
	m, warnings, err := h.RegionOps.CreateMapping(c.Request().Context(), mr)
	if err != nil {
		return h.adminError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"mapping": m, "warnings": warnings})
}

type rateRequest struct {
	Rate  string `json:"default_vat_rate"`
	Actor string `json:"actor"`
}

func (h *Handler) updateCountryRate(c echo.Context) error {
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := h.RegionOps.UpdateCountryRate(c.Request().Context(), c.Param("iso"), req.Rate, req.Actor); err != nil {
		return h.adminError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) publishRule(c echo.Context) error {
	var r engine.Rule
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	published, err := h.RuleOps.Publish(c.Request().Context(), r)
	if err != nil {
		return h.adminError(c, err)
	}
	return c.JSON(http.StatusCreated, published)
}

func (h *Handler) deactivateRule(c echo.Context) error {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "version must be an integer"})
	}
	if err := h.RuleOps.Deactivate(c.Request().Context(), c.Param("rule_id"), version); err != nil {
		return h.adminError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) adminError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownCountry), errors.Is(err, domain.ErrUnknownRegion), errors.Is(err, domain.ErrRuleNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrMappingOverlap):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		return h.internal(c, err)
	default:
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}
}

func (h *Handler) internal(c echo.Context, err error) error {
	h.Logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func optionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return region.ParseDate(s)
}
