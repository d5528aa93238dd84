package handler

import (
	"encoding/json"
	"net/http"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/repository"
	"gymops-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type MemberHandler struct {
	Repo   repository.MemberRepository
	Ledger service.LedgerService
}

func (h MemberHandler) RegisterRoutes(r chi.Router) {
	r.Get("/members", h.list)
	r.Post("/members", h.create)
	r.Get("/members/{id}", h.get)
	r.Put("/members/{id}", h.update)
	r.Delete("/members/{id}", h.archive)
	r.Post("/members/{id}/restore", h.restore)
	r.Get("/members/{id}/balance", h.balance)
}

type emergencyPayload struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

func (p *emergencyPayload) toDomain() *domain.EmergencyContact {
	if p == nil {
		return nil
	}
	return &domain.EmergencyContact{Name: p.Name, Phone: p.Phone, Relation: p.Relation}
}

func memberJSON(m *domain.Member) map[string]any {
	out := map[string]any{
		"id":         m.ID,
		"branch_id":  m.BranchID,
		"code":       m.Code,
		"full_name":  m.FullName,
		"status":     m.Status,
		"created_at": m.CreatedAt,
		"updated_at": m.UpdatedAt,
	}
	if m.Emergency != nil {
		out["emergency_contact"] = map[string]string{
			"name":     m.Emergency.Name,
			"phone":    m.Emergency.Phone,
			"relation": m.Emergency.Relation,
		}
	}
	return out
}

func (h MemberHandler) list(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	items, err := h.Repo.List(r.Context(), sc, 500)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, memberJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h MemberHandler) create(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		BranchID  string            `json:"branch_id"`
		Code      string            `json:"code"`
		FullName  string            `json:"full_name"`
		Status    string            `json:"status"`
		Emergency *emergencyPayload `json:"emergency_contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.BranchID == "" || req.Code == "" || req.FullName == "" {
		writeError(w, http.StatusBadRequest, "branch_id, code and full_name are required")
		return
	}
	m, err := h.Repo.Create(r.Context(), sc, repository.CreateMemberParams{
		BranchID:  req.BranchID,
		Code:      req.Code,
		FullName:  req.FullName,
		Status:    domain.MemberStatus(req.Status),
		Emergency: req.Emergency.toDomain(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, memberJSON(m))
}

func (h MemberHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	m, err := h.Repo.Get(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberJSON(m))
}

func (h MemberHandler) update(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		FullName  string            `json:"full_name"`
		Status    string            `json:"status"`
		Emergency *emergencyPayload `json:"emergency_contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	m, err := h.Repo.Update(r.Context(), sc, chi.URLParam(r, "id"), repository.UpdateMemberParams{
		FullName:  req.FullName,
		Status:    domain.MemberStatus(req.Status),
		Emergency: req.Emergency.toDomain(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memberJSON(m))
}

func (h MemberHandler) archive(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	if err := h.Repo.Archive(r.Context(), sc, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h MemberHandler) restore(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	if err := h.Repo.Restore(r.Context(), sc, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h MemberHandler) balance(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	due, err := h.Ledger.ComputeBalanceDue(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"member_id":         chi.URLParam(r, "id"),
		"balance_due_cents": due.Cents(),
	})
}
