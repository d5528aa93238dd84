package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/repository"
	"gymops-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type SubscriptionHandler struct {
	Svc  service.SubscriptionService
	Repo repository.SubscriptionRepository
}

func (h SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/subscriptions", h.create)
	r.Get("/subscriptions/{id}", h.get)
	r.Post("/subscriptions/{id}/cancel", h.cancel)
	r.Get("/members/{id}/subscriptions", h.listByMember)
}

func subscriptionJSON(s *domain.Subscription) map[string]any {
	return map[string]any{
		"id":               s.ID,
		"member_id":        s.MemberID,
		"plan_id":          s.PlanID,
		"starts_at":        s.StartsAt,
		"ends_at":          s.EndsAt,
		"status":           s.Status,
		"effective_status": s.EffectiveStatus(time.Now().UTC()),
		"auto_renew":       s.AutoRenew,
		"created_at":       s.CreatedAt,
		"updated_at":       s.UpdatedAt,
	}
}

// create makes a subscription either pending (awaiting a covering payment)
// or immediately active when activate is set.
func (h SubscriptionHandler) create(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID  string    `json:"member_id"`
		PlanID    string    `json:"plan_id"`
		StartsAt  time.Time `json:"starts_at"`
		AutoRenew bool      `json:"auto_renew"`
		Activate  bool      `json:"activate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MemberID == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "member_id and plan_id are required")
		return
	}
	in := service.ActivateSubscriptionInput{
		MemberID:  req.MemberID,
		PlanID:    req.PlanID,
		StartsAt:  req.StartsAt,
		AutoRenew: req.AutoRenew,
	}
	var (
		sub *domain.Subscription
		err error
	)
	if req.Activate {
		sub, err = h.Svc.ActivateSubscription(r.Context(), sc, in)
	} else {
		sub, err = h.Svc.CreatePending(r.Context(), sc, in)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subscriptionJSON(sub))
}

func (h SubscriptionHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	sub, err := h.Repo.SubscriptionByID(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionJSON(sub))
}

func (h SubscriptionHandler) cancel(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	sub, err := h.Svc.Cancel(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionJSON(sub))
}

func (h SubscriptionHandler) listByMember(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	items, err := h.Repo.ListByMember(r.Context(), sc, chi.URLParam(r, "id"), 100)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, subscriptionJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
