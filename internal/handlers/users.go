package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/auth"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/middleware"
	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoleInvalidator drops cached roles after an account changes.
type RoleInvalidator interface {
	InvalidateRole(uid string)
}

// UserHandler serves the admin user management endpoints.
type UserHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	roles          RoleInvalidator
}

func NewUserHandler(authService *auth.Service, userCollection db.UserCollection, roles RoleInvalidator) *UserHandler {
	return &UserHandler{authService: authService, userCollection: userCollection, roles: roles}
}

// CreateUser creates an account with a role and a temporary password. The
// caller is re-read from the store and must be an Admin.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "Authentication required to create users", http.StatusUnauthorized)
		return
	}
	admin, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, "Authentication required to create users", http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeStoreError(w, err, "User")
		return
	}
	if admin.Role != models.RoleAdmin {
		writeError(w, "Only administrators can create users", http.StatusForbidden)
		return
	}

	var req models.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.authService.ValidateEmail(req.Email); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !models.IsValidRole(req.Role) {
		writeError(w, "Invalid role", http.StatusBadRequest)
		return
	}

	if _, err := h.userCollection.FindUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, "A user with this email already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		writeStoreError(w, err, "User")
		return
	}

	temporary, err := h.authService.GenerateTemporaryPassword()
	if err != nil {
		writeError(w, "Failed to generate password", http.StatusInternalServerError)
		return
	}
	hash, err := h.authService.HashPassword(temporary)
	if err != nil {
		writeError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user := models.User{
		ID:                primitive.NewObjectID(),
		Email:             req.Email,
		PasswordHash:      hash,
		TemporaryPassword: true,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Phone:             req.Phone,
		Role:              req.Role,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, "A user with this email already exists", http.StatusConflict)
			return
		}
		writeStoreError(w, err, "User")
		return
	}

	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role, "created_by": claims.UserID}).Info("User created")
	writeJSON(w, http.StatusCreated, models.CreateUserResponse{
		Success:           true,
		UserID:            user.ID.Hex(),
		TemporaryPassword: temporary,
	})
}

// ListUsers lists accounts, optionally filtered by ?role=.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !models.IsValidRole(role) {
		writeError(w, "Invalid role", http.StatusBadRequest)
		return
	}
	users, err := h.userCollection.FindUsers(r.Context(), role)
	if err != nil {
		writeStoreError(w, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// UpdateRole changes the role of an account.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Role models.Role `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !models.IsValidRole(req.Role) {
		writeError(w, "Invalid role", http.StatusBadRequest)
		return
	}
	if err := h.userCollection.UpdateRole(r.Context(), id, req.Role); err != nil {
		writeStoreError(w, err, "User")
		return
	}
	h.roles.InvalidateRole(id)
	writeJSON(w, http.StatusOK, models.RoleResponse{UID: id, Role: req.Role})
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if id == claims.UserID {
		writeError(w, "You cannot delete your own account", http.StatusBadRequest)
		return
	}
	if err := h.userCollection.DeleteUser(r.Context(), id); err != nil {
		writeStoreError(w, err, "User")
		return
	}
	h.roles.InvalidateRole(id)
	w.WriteHeader(http.StatusNoContent)
}
