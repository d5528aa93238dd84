package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/repository"

	"github.com/go-chi/chi/v5"
)

type ClassHandler struct {
	Repo repository.ClassRepository
}

func (h ClassHandler) RegisterRoutes(r chi.Router) {
	r.Get("/classes", h.list)
	r.Post("/classes", h.create)
	r.Get("/classes/{id}", h.get)
	r.Put("/classes/{id}", h.update)
	r.Delete("/classes/{id}", h.archive)
	r.Get("/classes/{id}/schedules", h.listSchedules)
	r.Post("/classes/{id}/schedules", h.createSchedule)
	r.Get("/schedules/{id}", h.getSchedule)
	r.Delete("/schedules/{id}", h.cancelSchedule)
}

func classJSON(c *domain.GymClass) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"branch_id":  c.BranchID,
		"name":       c.Name,
		"capacity":   c.Capacity,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}

func scheduleJSON(s *domain.ClassSchedule) map[string]any {
	out := map[string]any{
		"id":         s.ID,
		"class_id":   s.ClassID,
		"starts_at":  s.StartsAt,
		"ends_at":    s.EndsAt,
		"created_at": s.CreatedAt,
		"updated_at": s.UpdatedAt,
	}
	if s.TrainerID != nil {
		out["trainer_id"] = *s.TrainerID
	}
	return out
}

func (h ClassHandler) list(w http.ResponseWriter, r *http.Request) {
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
		resp = append(resp, classJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ClassHandler) create(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		BranchID string `json:"branch_id"`
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.BranchID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "branch_id and name are required")
		return
	}
	c, err := h.Repo.Create(r.Context(), sc, repository.CreateClassParams{
		BranchID: req.BranchID,
		Name:     req.Name,
		Capacity: req.Capacity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, classJSON(c))
}

func (h ClassHandler) get(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	c, err := h.Repo.Get(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classJSON(c))
}

func (h ClassHandler) update(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Capacity int    `json:"capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c, err := h.Repo.Update(r.Context(), sc, chi.URLParam(r, "id"), repository.UpdateClassParams{
		Name:     req.Name,
		Capacity: req.Capacity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classJSON(c))
}

func (h ClassHandler) archive(w http.ResponseWriter, r *http.Request) {
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

func (h ClassHandler) listSchedules(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	from := time.Now().UTC()
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = parsed
	}
	items, err := h.Repo.ListSchedules(r.Context(), sc, chi.URLParam(r, "id"), from, 200)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, scheduleJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h ClassHandler) createSchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		TrainerID *string   `json:"trainer_id"`
		StartsAt  time.Time `json:"starts_at"`
		EndsAt    time.Time `json:"ends_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "starts_at and ends_at are required")
		return
	}
	s, err := h.Repo.CreateSchedule(r.Context(), sc, repository.CreateScheduleParams{
		ClassID:   chi.URLParam(r, "id"),
		TrainerID: req.TrainerID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scheduleJSON(s))
}

func (h ClassHandler) getSchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	s, err := h.Repo.GetSchedule(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleJSON(s))
}

func (h ClassHandler) cancelSchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	if err := h.Repo.CancelSchedule(r.Context(), sc, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
