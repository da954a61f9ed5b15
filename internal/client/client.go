// Package client is an HTTP client for the fleet portal API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ukydev/fleet-portal/internal/inspection"
	"github.com/ukydev/fleet-portal/internal/models"
	"github.com/ukydev/fleet-portal/internal/session"
)

// ErrNotSignedIn is returned by calls that need a token when none is stored.
var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to the portal API using the token held by a TokenStore.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenStore
}

func New(baseURL string, tokens *TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
}

// Login signs in and stores the session token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp, false)
	if err != nil {
		return nil, err
	}
	sess := session.Session{UID: resp.User.ID.Hex(), Email: resp.User.Email}
	if err := c.tokens.Save(resp.Token, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &resp, nil
}

// Logout revokes the token on the server and forgets it locally. The local
// token is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	var err error
	if c.tokens.Token() != "" {
		err = c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, true)
	}
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// Reauthenticate replaces the current session by signing in again with the
// current credential. Subscribers observe a sign-out followed by a sign-in.
func (c *Client) Reauthenticate(ctx context.Context, email, password string) error {
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	_, err := c.Login(ctx, email, password)
	return err
}

// ChangePassword replaces the caller's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := models.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", req, nil, true)
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetRole implements session.RoleStore. The server only answers for the
// signed-in user.
func (c *Client) GetRole(ctx context.Context, uid string) (models.Role, error) {
	var resp models.RoleResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/role", nil, &resp, true); err != nil {
		return "", err
	}
	if resp.UID != uid {
		return "", fmt.Errorf("role lookup answered for %q, want %q", resp.UID, uid)
	}
	return resp.Role, nil
}

func (c *Client) MyBookings(ctx context.Context) ([]models.Booking, error) {
	var out []models.Booking
	err := c.do(ctx, http.MethodGet, "/api/bookings/mine", nil, &out, true)
	return out, err
}

// Bookings lists all bookings; status may be "", pending, approved or rejected.
func (c *Client) Bookings(ctx context.Context, status string) ([]models.Booking, error) {
	path := "/api/bookings"
	if status != "" {
		path += "?status=" + status
	}
	var out []models.Booking
	err := c.do(ctx, http.MethodGet, path, nil, &out, true)
	return out, err
}

func (c *Client) Vehicles(ctx context.Context) ([]models.Vehicle, error) {
	var out []models.Vehicle
	err := c.do(ctx, http.MethodGet, "/api/vehicles", nil, &out, true)
	return out, err
}

func (c *Client) Todo(ctx context.Context) ([]inspection.Todo, error) {
	var out []inspection.Todo
	err := c.do(ctx, http.MethodGet, "/api/inspections/todo", nil, &out, true)
	return out, err
}

// CreateUser invokes the admin user creation procedure.
func (c *Client) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.CreateUserResponse, error) {
	var resp models.CreateUserResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/users", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, authed bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.tokens.Token()
		if token == "" {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ session.RoleStore = (*Client)(nil)
