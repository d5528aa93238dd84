package handler

import (
	"encoding/json"
	"net/http"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/repository"

	"github.com/go-chi/chi/v5"
)

type BranchHandler struct {
	Repo repository.BranchRepository
}

func (h BranchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/branches", h.list)
	r.Post("/branches", h.create)
	r.Get("/branches/{id}", h.get)
	r.Put("/branches/{id}", h.rename)
	r.Delete("/branches/{id}", h.archive)
}

func branchJSON(b *domain.Branch) map[string]any {
	return map[string]any{
		"id":         b.ID,
		"name":       b.Name,
		"created_at": b.CreatedAt,
		"updated_at": b.UpdatedAt,
	}
}

func (h BranchHandler) list(w http.ResponseWriter, r *http.Request) {
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
		resp = append(resp, branchJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h BranchHandler) create(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	b, err := h.Repo.Create(r.Context(), sc, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, branchJSON(b))
}

func (h BranchHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	b, err := h.Repo.Get(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branchJSON(b))
}

func (h BranchHandler) rename(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	b, err := h.Repo.Rename(r.Context(), sc, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branchJSON(b))
}

func (h BranchHandler) archive(w http.ResponseWriter, r *http.Request) {
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
