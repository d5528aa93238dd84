package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type InvoiceHandler struct {
	Svc service.LedgerService
}

func (h InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/invoices", h.create)
	r.Get("/invoices/{id}", h.get)
	r.Post("/invoices/{id}/issue", h.issue)
	r.Post("/invoices/{id}/void", h.void)
}

func invoiceJSON(inv *domain.Invoice) map[string]any {
	items := make([]map[string]any, 0, len(inv.Items))
	for _, it := range inv.Items {
		item := map[string]any{
			"id":               it.ID,
			"item_type":        it.ItemType,
			"qty":              it.Qty,
			"unit_price_cents": it.UnitPrice.Cents(),
			"line_total_cents": it.LineTotal.Cents(),
		}
		if it.RefID != nil {
			item["ref_id"] = *it.RefID
		}
		items = append(items, item)
	}
	out := map[string]any{
		"id":             inv.ID,
		"number":         inv.Number,
		"member_id":      inv.MemberID,
		"status":         inv.Status,
		"subtotal_cents": inv.Subtotal.Cents(),
		"discount_cents": inv.Discount.Cents(),
		"tax_cents":      inv.Tax.Cents(),
		"total_cents":    inv.Total.Cents(),
		"items":          items,
		"created_at":     inv.CreatedAt,
		"updated_at":     inv.UpdatedAt,
	}
	if inv.IssuedAt != nil {
		out["issued_at"] = *inv.IssuedAt
	}
	if inv.DueAt != nil {
		out["due_at"] = *inv.DueAt
	}
	return out
}

func (h InvoiceHandler) create(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID      string     `json:"member_id"`
		DiscountCents int64      `json:"discount_cents"`
		TaxCents      int64      `json:"tax_cents"`
		Issue         bool       `json:"issue"`
		DueAt         *time.Time `json:"due_at"`
		Items         []struct {
			ItemType       string  `json:"item_type"`
			RefID          *string `json:"ref_id"`
			Qty            int64   `json:"qty"`
			UnitPriceCents int64   `json:"unit_price_cents"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}
	in := service.CreateInvoiceInput{
		MemberID: req.MemberID,
		Discount: domain.Money(req.DiscountCents),
		Tax:      domain.Money(req.TaxCents),
		Issue:    req.Issue,
		DueAt:    req.DueAt,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.InvoiceItemInput{
			ItemType:  domain.InvoiceItemType(it.ItemType),
			RefID:     it.RefID,
			Qty:       it.Qty,
			UnitPrice: domain.Money(it.UnitPriceCents),
		})
	}
	inv, err := h.Svc.CreateInvoice(r.Context(), sc, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoiceJSON(inv))
}

func (h InvoiceHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Store.InvoiceByID(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceJSON(inv))
}

func (h InvoiceHandler) issue(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		DueAt *time.Time `json:"due_at"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	inv, err := h.Svc.IssueInvoice(r.Context(), sc, chi.URLParam(r, "id"), req.DueAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceJSON(inv))
}

func (h InvoiceHandler) void(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.VoidInvoice(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceJSON(inv))
}
