package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/customer-rebates/internal/models"
	"github.com/Cheertaboi/customer-rebates/internal/rebate"
	"github.com/Cheertaboi/customer-rebates/internal/service"
)

// --- Request / Response DTOs ---

type PositionBody struct {
	ProductID      int64           `json:"product_id" validate:"required,gt=0"`
	Title          string          `json:"title"`
	Quantity       int             `json:"quantity" validate:"gte=0"`
	Price          decimal.Decimal `json:"price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	ProductGroupID int64           `json:"product_group_id"`
	MirrorGroupIDs []int64         `json:"mirror_group_ids,omitempty"`
}

type QuoteRequestBody struct {
	CustomerID int64           `json:"customer_id" validate:"required,gt=0"`
	CartID     string          `json:"cart_id"`
	Currency   string          `json:"currency" validate:"omitempty,len=3"`
	Locale     string          `json:"locale"`
	Fees       decimal.Decimal `json:"fees"`
	Positions  []PositionBody  `json:"positions" validate:"dive"`
}

type TranslationBody struct {
	Locale string `json:"locale" validate:"required"`
	Title  string `json:"title" validate:"required"`
}

type CreateRuleBody struct {
	GroupID                        int64             `json:"group_id" validate:"required,gt=0"`
	ValidFrom                      time.Time         `json:"valid_from" validate:"required"`
	ValidUntil                     time.Time         `json:"valid_until" validate:"required,gtfield=ValidFrom"`
	Type                           string            `json:"type" validate:"omitempty,oneof=absolute percent"`
	Value                          decimal.Decimal   `json:"value"`
	MinimumOrderValue              decimal.Decimal   `json:"minimum_order_value"`
	Currency                       string            `json:"currency" validate:"omitempty,len=3"`
	RestrictToNewsletterRecipients bool              `json:"restrict_to_newsletter_recipients"`
	RestrictToFirstOrder           bool              `json:"restrict_to_first_order"`
	ProductGroupIDs                []int64           `json:"product_group_ids" validate:"unique,dive,gt=0"`
	Translations                   []TranslationBody `json:"translations" validate:"required,min=1,dive"`
}

type ApplicableResponse struct {
	Evaluations []rebate.Evaluation `json:"evaluations"`
}

type RulesResponse struct {
	Rules []models.RebateRule `json:"rules"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RebateService is the part of service.RebateService the handlers use.
type RebateService interface {
	Quote(ctx context.Context, req service.QuoteRequest) (service.Quote, error)
	Applicable(ctx context.Context, req service.QuoteRequest) ([]rebate.Evaluation, error)
	CreateRule(ctx context.Context, rule models.RebateRule) (models.RebateRule, error)
	GetRule(ctx context.Context, id int64) (*models.RebateRule, error)
	ListGroupRules(ctx context.Context, groupID int64) ([]models.RebateRule, error)
}

// --- Handler struct & constructor ---

type RebateHandler struct {
	service  RebateService
	validate *validator.Validate
	log      zerolog.Logger
}

func NewRebateHandler(svc RebateService, log zerolog.Logger) *RebateHandler {
	return &RebateHandler{
		service:  svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"error": ErrorBody{Code: code, Message: message, Details: details},
	})
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *RebateHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Namespace()] = fe.Tag()
			}
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "request validation failed", details)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return false
	}
	return true
}

func (h *RebateHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCustomerNotFound):
		writeError(w, http.StatusNotFound, "customer_not_found", err.Error(), nil)
	case errors.Is(err, service.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error(), nil)
	case errors.Is(err, models.ErrInvalidRule):
		writeError(w, http.StatusUnprocessableEntity, "invalid_rule", err.Error(), nil)
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func int64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (b QuoteRequestBody) toRequest() (service.QuoteRequest, error) {
	req := service.QuoteRequest{
		CustomerID: b.CustomerID,
		CartID:     b.CartID,
		Currency:   b.Currency,
		Locale:     b.Locale,
		Fees:       b.Fees,
		Positions:  make([]models.ProductPosition, 0, len(b.Positions)),
	}
	if b.Fees.IsNegative() {
		return req, errors.New("fees must not be negative")
	}
	for _, p := range b.Positions {
		if p.TaxRate.IsNegative() {
			return req, errors.New("tax_rate must not be negative")
		}
		req.Positions = append(req.Positions, models.ProductPosition{
			ProductID:      p.ProductID,
			Title:          p.Title,
			Quantity:       p.Quantity,
			Price:          p.Price,
			TaxRate:        p.TaxRate,
			ProductGroupID: p.ProductGroupID,
			MirrorGroupIDs: p.MirrorGroupIDs,
		})
	}
	return req, nil
}

func (b CreateRuleBody) toRule() models.RebateRule {
	rule := models.RebateRule{
		GroupID:                        b.GroupID,
		ValidFrom:                      b.ValidFrom,
		ValidUntil:                     b.ValidUntil,
		Type:                           models.RuleType(b.Type),
		Value:                          b.Value,
		MinimumOrderValue:              b.MinimumOrderValue,
		Currency:                       b.Currency,
		RestrictToNewsletterRecipients: b.RestrictToNewsletterRecipients,
		RestrictToFirstOrder:           b.RestrictToFirstOrder,
		ProductGroupIDs:                b.ProductGroupIDs,
	}
	for _, t := range b.Translations {
		rule.Translations = append(rule.Translations, models.Translation{Locale: t.Locale, Title: t.Title})
	}
	return rule
}

// --- Handlers ---

// Quote handles POST /rebates/quote
func (h *RebateHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var body QuoteRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
		return
	}
	q, err := h.service.Quote(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Applicable handles POST /rebates/applicable
func (h *RebateHandler) Applicable(w http.ResponseWriter, r *http.Request) {
	var body QuoteRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
		return
	}
	evs, err := h.service.Applicable(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if evs == nil {
		evs = []rebate.Evaluation{}
	}
	writeJSON(w, http.StatusOK, ApplicableResponse{Evaluations: evs})
}

// CreateRule handles POST /admin/rebates
func (h *RebateHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var body CreateRuleBody
	if !h.decode(w, r, &body) {
		return
	}
	rule, err := h.service.CreateRule(r.Context(), body.toRule())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule handles GET /admin/rebates/{id}
func (h *RebateHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be an integer", nil)
		return
	}
	rule, err := h.service.GetRule(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListGroupRules handles GET /admin/groups/{groupID}/rebates
func (h *RebateHandler) ListGroupRules(w http.ResponseWriter, r *http.Request) {
	groupID, err := int64Param(r, "groupID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "groupID must be an integer", nil)
		return
	}
	rules, err := h.service.ListGroupRules(r.Context(), groupID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rules == nil {
		rules = []models.RebateRule{}
	}
	writeJSON(w, http.StatusOK, RulesResponse{Rules: rules})
}
