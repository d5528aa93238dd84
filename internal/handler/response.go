package handler

import (
	"encoding/json"
	"net/http"

	"gymops-backend/internal/domain"
	"gymops-backend/internal/scope"
	"gymops-backend/internal/server/authctx"
)

type apiError struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

type apiResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data"`
	Error   *apiError `json:"error,omitempty"`
}

func writeRawJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if status >= 400 {
		writeRawJSON(w, status, apiResponse{
			Status:  "error",
			Message: "",
			Data:    payload,
			Error: &apiError{
				Code:   status,
				Status: http.StatusText(status),
			},
		})
		return
	}
	writeRawJSON(w, status, apiResponse{
		Status:  "ok",
		Message: "",
		Data:    payload,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status < 400 {
		status = http.StatusInternalServerError
	}
	writeRawJSON(w, status, apiResponse{
		Status:  "error",
		Message: message,
		Data:    nil,
		Error: &apiError{
			Code:   status,
			Status: http.StatusText(status),
		},
	})
}

// writeDomainError maps business errors onto status codes. Cross-tenant rows
// surface as 404 like any other miss; deterministic rejections are 409.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case domain.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case domain.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// requestScope resolves the authenticated principal's query scope. Handlers
// behind AuthMiddleware always find a user; the guard is for misrouting.
func requestScope(w http.ResponseWriter, r *http.Request) (scope.Scope, bool) {
	u := authctx.FromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return scope.Scope{}, false
	}
	return u.Scope(), true
}
