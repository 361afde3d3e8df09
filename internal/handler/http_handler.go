package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/approval"
	"github.com/fintra-io/be-expenses/internal/repository"
	"github.com/fintra-io/be-expenses/internal/service"
)

// HTTPHandler exposes the approval engine over HTTP. Identity is an
// external trusted collaborator: the authenticated actor id arrives in
// the X-User-ID header, set by the gateway.
type HTTPHandler struct {
	expenses  *service.ExpenseService
	approvals *service.ApprovalService
	rules     *service.RuleService
	log       zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(expenses *service.ExpenseService, approvals *service.ApprovalService, rules *service.RuleService, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		expenses:  expenses,
		approvals: approvals,
		rules:     rules,
		log:       log,
	}
}

// Routes mounts all endpoints on a chi router.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", h.SubmitExpense)
			r.Get("/", h.ListExpenses)
			r.Get("/{id}", h.GetExpense)
			r.Delete("/{id}", h.DeleteExpense)
			r.Get("/{id}/history", h.ApprovalHistory)
			r.Post("/{id}/steps/{stepID}/approve", h.ApproveStep)
			r.Post("/{id}/steps/{stepID}/reject", h.RejectStep)
		})
		r.Get("/approvals/pending", h.PendingApprovals)
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", h.CreateRule)
			r.Get("/", h.ListRules)
			r.Get("/{id}", h.GetRule)
			r.Put("/{id}", h.UpdateRule)
			r.Delete("/{id}", h.DeleteRule)
		})
	})
}

// ── expenses ──────────────────────────────────────────────────────────────────

// SubmitExpense handles expense submission.
func (h *HTTPHandler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		h.writeError(w, apperrors.Unauthorized("missing X-User-ID header"))
		return
	}

	var req service.SubmitExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
		return
	}
	req.EmployeeID = actor

	result, err := h.expenses.SubmitExpense(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// GetExpense returns one expense with its workflow steps.
func (h *HTTPHandler) GetExpense(w http.ResponseWriter, r *http.Request) {
	expense, steps, err := h.expenses.GetExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"expense": expense,
		"steps":   steps,
	})
}

// ListExpenses returns the calling employee's expenses.
func (h *HTTPHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		h.writeError(w, apperrors.Unauthorized("missing X-User-ID header"))
		return
	}

	expenses, err := h.expenses.ListByEmployee(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, expenses)
}

// DeleteExpense removes a pending, unprogressed expense.
func (h *HTTPHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		h.writeError(w, apperrors.Unauthorized("missing X-User-ID header"))
		return
	}

	if err := h.expenses.DeleteExpense(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApprovalHistory returns the audit trail for an expense.
func (h *HTTPHandler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.expenses.ApprovalHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ── approvals ─────────────────────────────────────────────────────────────────

type actRequest struct {
	Comments string `json:"comments"`
}

// ApproveStep records an approval on one step.
func (h *HTTPHandler) ApproveStep(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, approval.DecisionApprove)
}

// RejectStep records a rejection on one step. Comments are required.
func (h *HTTPHandler) RejectStep(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, approval.DecisionReject)
}

func (h *HTTPHandler) act(w http.ResponseWriter, r *http.Request, decision approval.Decision) {
	actor := actorID(r)
	if actor == "" {
		h.writeError(w, apperrors.Unauthorized("missing X-User-ID header"))
		return
	}

	var req actRequest
	if r.Body != nil {
		// Body is optional for approvals.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.approvals.Act(r.Context(), chi.URLParam(r, "stepID"), actor, decision, req.Comments)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// PendingApprovals returns the steps awaiting the caller's decision.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	if actor == "" {
		h.writeError(w, apperrors.Unauthorized("missing X-User-ID header"))
		return
	}

	steps, err := h.approvals.PendingApprovals(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, steps)
}

// ── rules ─────────────────────────────────────────────────────────────────────

type ruleRequest struct {
	CompanyID        string                    `json:"company_id"`
	Name             string                    `json:"name"`
	RuleType         repository.RuleType       `json:"rule_type"`
	ApprovalSequence []string                  `json:"approval_sequence"`
	Conditions       *repository.ConditionSpec `json:"conditions"`
	MinAmountCents   *int64                    `json:"min_amount_cents"`
	MaxAmountCents   *int64                    `json:"max_amount_cents"`
	Category         *string                   `json:"category"`
	Priority         int                       `json:"priority"`
	IsActive         bool                      `json:"is_active"`
}

func (req *ruleRequest) toRule() *repository.ApprovalRule {
	return &repository.ApprovalRule{
		CompanyID:        req.CompanyID,
		Name:             req.Name,
		RuleType:         req.RuleType,
		ApprovalSequence: req.ApprovalSequence,
		Conditions:       req.Conditions,
		MinAmountCents:   req.MinAmountCents,
		MaxAmountCents:   req.MaxAmountCents,
		Category:         req.Category,
		Priority:         req.Priority,
		IsActive:         req.IsActive,
	}
}

// CreateRule creates an approval rule.
func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	rule := req.toRule()
	if err := h.rules.CreateRule(r.Context(), rule); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rule)
}

// GetRule returns one rule.
func (h *HTTPHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetRule(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("company_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rule)
}

// ListRules returns a company's rules in evaluation order.
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.writeError(w, apperrors.InvalidInput("company_id", "is required"))
		return
	}

	rules, err := h.rules.ListRules(r.Context(), companyID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rules)
}

// UpdateRule updates an existing rule.
func (h *HTTPHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	rule := req.toRule()
	rule.ID = chi.URLParam(r, "id")
	if err := h.rules.UpdateRule(r.Context(), rule); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes an unreferenced rule.
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.DeleteRule(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("company_id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func actorID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeUnauthorized:
		status = http.StatusForbidden
	case apperrors.CodeConflict, apperrors.CodeConcurrentModification:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}

	h.writeJSON(w, status, errorResponse{Code: string(code), Message: err.Error()})
}
