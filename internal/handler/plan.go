package handler

import (
	"encoding/json"
	"net/http"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/repository"

	"github.com/go-chi/chi/v5"
)

type PlanHandler struct {
	Repo repository.PlanRepository
}

func (h PlanHandler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.list)
	r.Post("/plans", h.create)
	r.Get("/plans/{id}", h.get)
	r.Post("/plans/{id}/retire", h.retire)
}

func planJSON(p *domain.Plan) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"duration_days": p.DurationDays,
		"price_cents":   p.Price.Cents(),
		"access_rules":  p.AccessRules,
		"status":        p.Status,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
}

func (h PlanHandler) list(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	items, err := h.Repo.List(r.Context(), sc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, planJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h PlanHandler) create(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		Name         string         `json:"name"`
		DurationDays int            `json:"duration_days"`
		PriceCents   int64          `json:"price_cents"`
		AccessRules  map[string]any `json:"access_rules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	p, err := h.Repo.Create(r.Context(), sc, repository.CreatePlanParams{
		Name:         req.Name,
		DurationDays: req.DurationDays,
		Price:        domain.Money(req.PriceCents),
		AccessRules:  req.AccessRules,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, planJSON(p))
}

func (h PlanHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	p, err := h.Repo.Get(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planJSON(p))
}

func (h PlanHandler) retire(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	if err := h.Repo.Retire(r.Context(), sc, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
