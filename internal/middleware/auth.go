package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/auth"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/models"
	"github.com/ukydev/fleet-portal/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey contextKey = "user"
	RoleContextKey contextKey = "role"
)

// RoleSource looks up the role stored for a user.
type RoleSource interface {
	GetRole(ctx context.Context, uid string) (models.Role, error)
}

// AuthMiddleware provides JWT authentication and role checks. Roles are read
// from the user document, not the token, and cached per uid for the role TTL.
type AuthMiddleware struct {
	authService *auth.Service
	roles       RoleSource
	roleTTL     time.Duration
	now         func() time.Time

	mu        sync.Mutex
	caches    map[string]*session.MemoryCache
	lastSweep time.Time
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service, roles RoleSource, roleTTL time.Duration) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		roles:       roles,
		roleTTL:     roleTTL,
		now:         time.Now,
		caches:      make(map[string]*session.MemoryCache),
	}
}

// Authenticate validates JWT tokens and adds user context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		token, err := m.authService.ExtractTokenFromHeader(authHeader)
		if err != nil {
			writeError(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				writeError(w, "Session expired, please sign in again", http.StatusUnauthorized)
			case errors.Is(err, auth.ErrRevokedToken):
				writeError(w, "Session has been signed out", http.StatusUnauthorized)
			default:
				writeError(w, "Invalid or expired token", http.StatusUnauthorized)
			}
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits callers whose stored role is one of allowedRoles. With no
// roles given any assigned role is accepted.
func (m *AuthMiddleware) RequireRole(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			role, err := m.ResolveRole(r.Context(), claims.UserID)
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "No role assigned to this account", http.StatusForbidden)
				return
			}
			if err != nil {
				log.WithError(err).WithField("user_id", claims.UserID).Error("Failed to resolve role")
				writeError(w, "Failed to resolve role", http.StatusInternalServerError)
				return
			}

			if !models.HasAnyRole(role, allowedRoles...) {
				writeError(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), RoleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResolveRole returns the cached role of uid, reading the store on a miss.
func (m *AuthMiddleware) ResolveRole(ctx context.Context, uid string) (models.Role, error) {
	cache := m.cacheFor(uid)
	if role, ok := cache.Get(uid); ok {
		return role, nil
	}
	role, err := m.roles.GetRole(ctx, uid)
	if err != nil {
		return "", err
	}
	cache.Put(uid, role)
	return role, nil
}

// InvalidateRole drops the cached role of uid so the next request reads the store.
func (m *AuthMiddleware) InvalidateRole(uid string) {
	m.mu.Lock()
	delete(m.caches, uid)
	m.mu.Unlock()
}

func (m *AuthMiddleware) cacheFor(uid string) *session.MemoryCache {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	cache, ok := m.caches[uid]
	if !ok {
		cache = session.NewMemoryCache(m.roleTTL, m.now)
		m.caches[uid] = cache
	}
	return cache
}

// sweepLocked drops the caches of uids whose role has expired, at most once
// per role TTL. m.mu must be held.
func (m *AuthMiddleware) sweepLocked() {
	now := m.now()
	ttl := m.roleTTL
	if ttl <= 0 {
		ttl = session.DefaultRoleTTL
	}
	if now.Sub(m.lastSweep) < ttl {
		return
	}
	m.lastSweep = now
	for uid, cache := range m.caches {
		if _, ok := cache.Get(uid); !ok {
			delete(m.caches, uid)
		}
	}
}

// cachedUIDs reports how many uids currently hold a role cache.
func (m *AuthMiddleware) cachedUIDs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.caches)
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// GetRoleFromContext returns the role resolved by RequireRole.
func GetRoleFromContext(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(RoleContextKey).(models.Role)
	return role, ok
}

// WithClaims returns a copy of ctx carrying claims. Used by handler tests.
func WithClaims(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// WithRole returns a copy of ctx carrying a resolved role.
func WithRole(ctx context.Context, role models.Role) context.Context {
	return context.WithValue(ctx, RoleContextKey, role)
}

// shouldSkipAuth determines if authentication should be skipped for a given path
func shouldSkipAuth(path string) bool {
	skipPaths := []string{
		"/api/auth/login",
		"/health",
	}

	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
