package handler

import (
	"encoding/json"
	"net/http"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type PaymentHandler struct {
	Svc service.LedgerService
}

func (h PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments", h.record)
	r.Get("/payments/{id}", h.get)
	r.Post("/payments/{id}/succeed", h.succeed)
	r.Post("/payments/{id}/refund", h.refund)
}

func paymentJSON(p *domain.Payment) map[string]any {
	out := map[string]any{
		"id":           p.ID,
		"member_id":    p.MemberID,
		"method":       p.Method,
		"amount_cents": p.Amount.Cents(),
		"status":       p.Status,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}
	if p.InvoiceID != nil {
		out["invoice_id"] = *p.InvoiceID
	}
	if p.SubscriptionID != nil {
		out["subscription_id"] = *p.SubscriptionID
	}
	if p.PaidAt != nil {
		out["paid_at"] = *p.PaidAt
	}
	return out
}

func paymentResultJSON(res *service.PaymentResult) map[string]any {
	out := map[string]any{"payment": paymentJSON(res.Payment)}
	if res.Activated != nil {
		out["activated_subscription"] = subscriptionJSON(res.Activated)
	}
	return out
}

func (h PaymentHandler) record(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID       string  `json:"member_id"`
		InvoiceID      *string `json:"invoice_id"`
		SubscriptionID *string `json:"subscription_id"`
		Method         string  `json:"method"`
		AmountCents    int64   `json:"amount_cents"`
		Succeeded      bool    `json:"succeeded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MemberID == "" || req.Method == "" {
		writeError(w, http.StatusBadRequest, "member_id and method are required")
		return
	}
	res, err := h.Svc.RecordPayment(r.Context(), sc, service.RecordPaymentInput{
		MemberID:       req.MemberID,
		InvoiceID:      req.InvoiceID,
		SubscriptionID: req.SubscriptionID,
		Method:         req.Method,
		Amount:         domain.Money(req.AmountCents),
		Succeeded:      req.Succeeded,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResultJSON(res))
}

func (h PaymentHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Store.PaymentByID(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentJSON(p))
}

// succeed is the provider confirmation hook. Safe to deliver more than once;
// repeats return the settled payment without re-running side effects.
func (h PaymentHandler) succeed(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.MarkPaymentSucceeded(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResultJSON(res))
}

func (h PaymentHandler) refund(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		AmountCents int64  `json:"amount_cents"`
		Reason      string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	refund, err := h.Svc.RefundPayment(r.Context(), sc, chi.URLParam(r, "id"), domain.Money(req.AmountCents), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           refund.ID,
		"payment_id":   refund.PaymentID,
		"amount_cents": refund.Amount.Cents(),
		"reason":       refund.Reason,
		"refunded_at":  refund.RefundedAt,
	})
}
