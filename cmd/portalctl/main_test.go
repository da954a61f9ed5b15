package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-portal/internal/inspection"
	"github.com/ukydev/fleet-portal/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testPassword = "correct-horse1"

type fakePortal struct {
	mu        sync.Mutex
	user      models.User
	password  string
	token     string
	logins    int
	roleCalls int
	changed   string
	created   *models.CreateUserRequest
}

func newFakePortal(t *testing.T, role models.Role) *fakePortal {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return &fakePortal{
		user:     models.User{ID: primitive.NewObjectID(), Email: "ana@example.com", Role: role},
		password: testPassword,
		token:    token,
	}
}

func (f *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/api/auth/login" {
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"Invalid email or password"}`))
			return
		}
		f.logins++
		json.NewEncoder(w).Encode(models.LoginResponse{Token: f.token, User: f.user})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Authentication required"}`))
		return
	}

	switch r.URL.Path {
	case "/api/auth/role":
		f.roleCalls++
		json.NewEncoder(w).Encode(models.RoleResponse{UID: f.user.ID.Hex(), Role: f.user.Role})
	case "/api/auth/logout":
		w.Write([]byte(`{"message":"Signed out"}`))
	case "/api/auth/change-password":
		var req models.ChangePasswordRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.password = req.NewPassword
		f.changed = req.NewPassword
		w.Write([]byte(`{"message":"Password changed"}`))
	case "/api/inspections/todo":
		json.NewEncoder(w).Encode([]inspection.Todo{{
			Booking:            models.Booking{ID: "BK-AAAAAAAAA", Vehicle: "VH-AAAAAA", Destination: "Depot"},
			NeedsPreInspection: true,
		}})
	case "/api/bookings/mine":
		json.NewEncoder(w).Encode([]models.Booking{{ID: "BK-MINE00001", BookingStatus: true, KeyCollectionStatus: true}})
	case "/api/bookings":
		json.NewEncoder(w).Encode([]models.Booking{{ID: "BK-ALL000001", RejectionReason: "No driver"}})
	case "/api/vehicles":
		json.NewEncoder(w).Encode([]models.Vehicle{{ID: "VH-AAAAAA", PlateNumber: "FLT 0001", Brand: "Toyota", Model: "Hiace", Year: 2022, SeatCapacity: 12, MaintenanceStatus: true}})
	case "/api/admin/users":
		var req models.CreateUserRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.created = &req
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.CreateUserResponse{Success: true, UserID: "new-id", TemporaryPassword: "Tmp12345abcd"})
	default:
		http.NotFound(w, r)
	}
}

type testApp struct {
	*app
	portal *fakePortal
	out    *bytes.Buffer
	in     *strings.Reader
	server string
	state  string
}

func newTestApp(t *testing.T, role models.Role) *testApp {
	t.Helper()
	portal := newFakePortal(t, role)
	srv := httptest.NewServer(portal)
	t.Cleanup(srv.Close)
	ta := &testApp{portal: portal, server: srv.URL, state: t.TempDir()}
	ta.reset("")
	return ta
}

// reset rebuilds the app over the same state directory, like a new process.
func (ta *testApp) reset(input string) {
	ta.out = &bytes.Buffer{}
	ta.in = strings.NewReader(input)
	ta.app = newApp(ta.server, ta.state, ta.in, ta.out)
	ta.app.gate.grace = 20 * time.Millisecond
	ta.app.gate.timeout = 2 * time.Second
}

func (ta *testApp) login(t *testing.T) {
	t.Helper()
	ta.reset(testPassword + "\n")
	require.NoError(t, ta.run(context.Background(), "login", []string{"-email", "ana@example.com"}))
}

func TestLoginThenWhoami(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.login(t)
	assert.Contains(t, ta.out.String(), "Signed in as ana@example.com (Staff)")

	ta.reset("")
	require.NoError(t, ta.run(context.Background(), "whoami", nil))
	assert.Contains(t, ta.out.String(), ta.portal.user.ID.Hex())
	assert.Contains(t, ta.out.String(), "Staff")

	// The role is now cached on disk for the next process.
	ta.reset("")
	require.NoError(t, ta.run(context.Background(), "whoami", nil))
	assert.Equal(t, 1, ta.portal.roleCalls)
}

func TestLoginWrongPassword(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.reset("nope\n")
	err := ta.run(context.Background(), "login", []string{"-email", "ana@example.com"})
	assert.Error(t, err)
	assert.Nil(t, ta.tokens.Current())
}

func TestCommandsRequireSignIn(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	for _, name := range []string{"whoami", "todo", "bookings", "vehicles"} {
		ta.reset("")
		assert.ErrorIs(t, ta.run(context.Background(), name, nil), errRedirected, name)
	}
}

func TestTodoForStaff(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.login(t)

	ta.reset("")
	require.NoError(t, ta.run(context.Background(), "todo", nil))
	out := ta.out.String()
	assert.Contains(t, out, "BK-AAAAAAAAA")
	assert.Contains(t, out, "pre")
}

func TestTodoDeniedForReceptionist(t *testing.T) {
	ta := newTestApp(t, models.RoleReceptionist)
	ta.login(t)

	ta.reset("")
	assert.ErrorIs(t, ta.run(context.Background(), "todo", nil), errRedirected)
}

func TestBookingsByRole(t *testing.T) {
	staff := newTestApp(t, models.RoleStaff)
	staff.login(t)
	staff.reset("")
	require.NoError(t, staff.run(context.Background(), "bookings", nil))
	assert.Contains(t, staff.out.String(), "BK-MINE00001")
	assert.Contains(t, staff.out.String(), "collected")

	desk := newTestApp(t, models.RoleReceptionist)
	desk.login(t)
	desk.reset("")
	require.NoError(t, desk.run(context.Background(), "bookings", []string{"-status", "rejected"}))
	assert.Contains(t, desk.out.String(), "BK-ALL000001")
	assert.Contains(t, desk.out.String(), "rejected")
}

func TestVehicles(t *testing.T) {
	ta := newTestApp(t, models.RoleAdmin)
	ta.login(t)
	ta.reset("")
	require.NoError(t, ta.run(context.Background(), "vehicles", nil))
	assert.Contains(t, ta.out.String(), "FLT 0001")
	assert.Contains(t, ta.out.String(), "yes")
}

func TestCreateUser(t *testing.T) {
	ta := newTestApp(t, models.RoleAdmin)
	ta.login(t)

	ta.reset("")
	require.NoError(t, ta.run(context.Background(), "create-user", []string{"-email", "new@example.com", "-role", "Receptionist"}))
	assert.Contains(t, ta.out.String(), "Temporary password: Tmp12345abcd")
	require.NotNil(t, ta.portal.created)
	assert.Equal(t, models.RoleReceptionist, ta.portal.created.Role)

	ta.reset("")
	assert.Error(t, ta.run(context.Background(), "create-user", []string{"-email", "x@example.com", "-role", "Boss"}))
}

func TestCreateUserDeniedForStaff(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.login(t)

	ta.reset("")
	assert.ErrorIs(t, ta.run(context.Background(), "create-user", []string{"-email", "new@example.com"}), errRedirected)
	assert.Nil(t, ta.portal.created)
}

func TestPasswdReauthenticatesWithoutRedirect(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.login(t)

	ta.reset(testPassword + "\nbrand-new-2\nbrand-new-2\n")
	require.NoError(t, ta.run(context.Background(), "passwd", nil))
	assert.Contains(t, ta.out.String(), "Password changed")
	assert.Equal(t, "brand-new-2", ta.portal.changed)
	assert.Equal(t, 2, ta.portal.logins)
	assert.NotNil(t, ta.tokens.Current())
	assert.False(t, ta.reauth.IsSet())
}

func TestPasswdMismatch(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.login(t)

	ta.reset(testPassword + "\nbrand-new-2\nother-3\n")
	assert.EqualError(t, ta.run(context.Background(), "passwd", nil), "passwords do not match")
	assert.Empty(t, ta.portal.changed)
}

func TestLogout(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	ta.login(t)

	ta.reset("")
	require.NoError(t, ta.run(context.Background(), "logout", nil))
	assert.Contains(t, ta.out.String(), "Signed out")

	ta.reset("")
	assert.ErrorIs(t, ta.run(context.Background(), "whoami", nil), errRedirected)
}

func TestUnknownCommand(t *testing.T) {
	ta := newTestApp(t, models.RoleStaff)
	assert.ErrorIs(t, ta.run(context.Background(), "frobnicate", nil), errUnknownCommand)
}
