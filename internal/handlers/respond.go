package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/middleware"
	"github.com/ukydev/fleet-portal/internal/models"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeStoreError maps store errors onto responses; what names the record.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, db.ErrDuplicate):
		writeError(w, what+" already exists", http.StatusConflict)
	default:
		log.WithError(err).Errorf("%s store operation failed", what)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeError(w, verr.Error(), http.StatusBadRequest)
		return
	}
	writeError(w, err.Error(), http.StatusBadRequest)
}

// caller returns the authenticated claims and the resolved role. The role
// set by RequireRole wins over the token claim.
func caller(w http.ResponseWriter, r *http.Request) (*models.Claims, models.Role, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return nil, "", false
	}
	role, ok := middleware.GetRoleFromContext(r.Context())
	if !ok {
		role = claims.Role
	}
	return claims, role, true
}
