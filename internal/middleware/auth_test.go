package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-portal/internal/auth"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockRoleSource struct {
	mock.Mock
}

func (m *MockRoleSource) GetRole(ctx context.Context, uid string) (models.Role, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(models.Role), args.Error(1)
}

func newTestMiddleware(t *testing.T, roles RoleSource) (*AuthMiddleware, *auth.Service) {
	t.Helper()
	authService, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return NewAuthMiddleware(authService, roles, time.Minute), authService
}

func tokenFor(t *testing.T, svc *auth.Service, role models.Role) (string, *models.User) {
	t.Helper()
	user := &models.User{ID: primitive.NewObjectID(), Email: "someone@example.com", Role: role}
	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	return token, user
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	middleware, authService := newTestMiddleware(t, &MockRoleSource{})

	t.Run("valid token", func(t *testing.T) {
		token, user := tokenFor(t, authService, models.RoleStaff)

		req := httptest.NewRequest("GET", "/api/bookings/mine", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			claims, ok := GetUserFromContext(r.Context())
			assert.True(t, ok)
			assert.Equal(t, user.ID.Hex(), claims.UserID)
			assert.Equal(t, user.Email, claims.Email)
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/bookings/mine", nil)
		w := httptest.NewRecorder()

		handlerCalled := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		middleware.Authenticate(handler).ServeHTTP(w, req)
		assert.False(t, handlerCalled)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"Authentication required"}`, w.Body.String())
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/bookings/mine", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		token, _ := tokenFor(t, authService, models.RoleStaff)
		claims, err := authService.ValidateToken(token)
		require.NoError(t, err)
		authService.Revoke(claims)

		req := httptest.NewRequest("GET", "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "signed out")
	})

	t.Run("skip auth path", func(t *testing.T) {
		for _, path := range []string{"/api/auth/login", "/health"} {
			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()

			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
			})

			middleware.Authenticate(handler).ServeHTTP(w, req)
			assert.True(t, handlerCalled, path)
		}
	})

	t.Run("image relay requires a token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/proxy-image?url=http://127.0.0.1/", nil)
		w := httptest.NewRecorder()

		middleware.Authenticate(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	t.Run("stored role is used over token role", func(t *testing.T) {
		roles := &MockRoleSource{}
		middleware, authService := newTestMiddleware(t, roles)
		token, user := tokenFor(t, authService, models.RoleStaff)
		roles.On("GetRole", mock.Anything, user.ID.Hex()).Return(models.RoleAdmin, nil).Once()

		req := httptest.NewRequest("GET", "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		var resolved models.Role
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resolved, _ = GetRoleFromContext(r.Context())
		})

		middleware.Authenticate(middleware.RequireRole(models.RoleAdmin)(handler)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.RoleAdmin, resolved)
		roles.AssertExpectations(t)
	})

	t.Run("staff cannot reach admin endpoint", func(t *testing.T) {
		roles := &MockRoleSource{}
		middleware, authService := newTestMiddleware(t, roles)
		token, user := tokenFor(t, authService, models.RoleStaff)
		roles.On("GetRole", mock.Anything, user.ID.Hex()).Return(models.RoleStaff, nil)

		req := httptest.NewRequest("GET", "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		middleware.Authenticate(middleware.RequireRole(models.RoleAdmin)(http.NotFoundHandler())).ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing role document", func(t *testing.T) {
		roles := &MockRoleSource{}
		middleware, authService := newTestMiddleware(t, roles)
		token, user := tokenFor(t, authService, models.RoleStaff)
		roles.On("GetRole", mock.Anything, user.ID.Hex()).Return(models.Role(""), db.ErrNotFound)

		req := httptest.NewRequest("GET", "/api/inspections/todo", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		middleware.Authenticate(middleware.RequireRole()(http.NotFoundHandler())).ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no claims", func(t *testing.T) {
		middleware, _ := newTestMiddleware(t, &MockRoleSource{})
		req := httptest.NewRequest("GET", "/api/vehicles", nil)
		w := httptest.NewRecorder()

		middleware.RequireRole()(http.NotFoundHandler()).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddleware_ResolveRoleCaching(t *testing.T) {
	roles := &MockRoleSource{}
	middleware, _ := newTestMiddleware(t, roles)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	middleware.now = func() time.Time { return now }

	roles.On("GetRole", mock.Anything, "u1").Return(models.RoleReceptionist, nil).Twice()

	role, err := middleware.ResolveRole(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleReceptionist, role)

	// served from the cache inside the ttl
	now = now.Add(30 * time.Second)
	_, err = middleware.ResolveRole(context.Background(), "u1")
	require.NoError(t, err)
	roles.AssertNumberOfCalls(t, "GetRole", 1)

	// expired
	now = now.Add(time.Minute)
	_, err = middleware.ResolveRole(context.Background(), "u1")
	require.NoError(t, err)
	roles.AssertNumberOfCalls(t, "GetRole", 2)
}

func TestAuthMiddleware_InvalidateRole(t *testing.T) {
	roles := &MockRoleSource{}
	middleware, _ := newTestMiddleware(t, roles)
	roles.On("GetRole", mock.Anything, "u1").Return(models.RoleStaff, nil).Once()
	roles.On("GetRole", mock.Anything, "u1").Return(models.RoleAdmin, nil).Once()

	role, _ := middleware.ResolveRole(context.Background(), "u1")
	assert.Equal(t, models.RoleStaff, role)

	middleware.InvalidateRole("u1")
	role, _ = middleware.ResolveRole(context.Background(), "u1")
	assert.Equal(t, models.RoleAdmin, role)
	roles.AssertExpectations(t)
}

func TestAuthMiddleware_ExpiredCachesAreSwept(t *testing.T) {
	roles := &MockRoleSource{}
	middleware, _ := newTestMiddleware(t, roles)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	middleware.now = func() time.Time { return now }
	roles.On("GetRole", mock.Anything, mock.Anything).Return(models.RoleStaff, nil)

	for _, uid := range []string{"u1", "u2", "u3"} {
		_, err := middleware.ResolveRole(context.Background(), uid)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, middleware.cachedUIDs())

	now = now.Add(2 * middleware.roleTTL)
	_, err := middleware.ResolveRole(context.Background(), "u4")
	require.NoError(t, err)
	assert.Equal(t, 1, middleware.cachedUIDs())
}
