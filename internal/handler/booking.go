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

type BookingHandler struct {
	Svc  service.BookingService
	Repo repository.BookingRepository
}

func (h BookingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/schedules/{id}/bookings", h.book)
	r.Get("/schedules/{id}/bookings", h.listBySchedule)
	r.Post("/schedules/{id}/waitlist", h.joinWaitlist)
	r.Post("/waitlist/{id}/notified", h.markNotified)
	r.Post("/bookings/{id}/cancel", h.cancel)
	r.Post("/bookings/{id}/check-in", h.checkIn)
	r.Post("/bookings/{id}/no-show", h.noShow)
}

func bookingJSON(b *domain.ClassBooking) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"schedule_id": b.ScheduleID,
		"member_id":   b.MemberID,
		"status":      b.Status,
		"created_at":  b.CreatedAt,
		"updated_at":  b.UpdatedAt,
	}
}

func (h BookingHandler) book(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID string `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}
	res, err := h.Svc.Book(r.Context(), sc, chi.URLParam(r, "id"), req.MemberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingJSON(res.Booking))
}

func (h BookingHandler) listBySchedule(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	items, err := h.Repo.ListBookingsBySchedule(r.Context(), sc, chi.URLParam(r, "id"), 500)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for i := range items {
		resp = append(resp, bookingJSON(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h BookingHandler) joinWaitlist(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID string `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}
	entry, err := h.Svc.JoinWaitlist(r.Context(), sc, chi.URLParam(r, "id"), req.MemberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          entry.ID,
		"schedule_id": entry.ScheduleID,
		"member_id":   entry.MemberID,
		"position":    entry.Position,
		"created_at":  entry.CreatedAt,
	})
}

// markNotified stamps a waitlist entry after staff reach out to the member.
// Promotion into a freed slot happens on cancellation regardless.
func (h BookingHandler) markNotified(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	if err := h.Repo.MarkWaitlistNotified(r.Context(), sc, chi.URLParam(r, "id"), time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h BookingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	res, err := h.Svc.CancelBooking(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := map[string]any{"booking": bookingJSON(res.Booking)}
	if res.Promoted != nil {
		out["promoted"] = bookingJSON(res.Promoted)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h BookingHandler) checkIn(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	b, err := h.Svc.CheckIn(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingJSON(b))
}

func (h BookingHandler) noShow(w http.ResponseWriter, r *http.Request) {
	sc, ok := requestScope(w, r)
	if !ok {
		return
	}
	b, err := h.Svc.MarkNoShow(r.Context(), sc, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingJSON(b))
}
