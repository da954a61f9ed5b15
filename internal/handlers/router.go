package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/auth"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/events"
	"github.com/ukydev/fleet-portal/internal/middleware"
	"github.com/ukydev/fleet-portal/internal/models"
	"github.com/ukydev/fleet-portal/internal/storage"
)

// Deps collects what the router needs. Blobs, Publisher, RateLimiter and
// Health are optional.
type Deps struct {
	AuthService *auth.Service
	AuthMW      *middleware.AuthMiddleware
	Users       db.UserCollection
	Vehicles    db.VehicleCollection
	Bookings    db.BookingCollection
	Inspections db.InspectionCollection
	Blobs       storage.BlobStore
	Publisher   events.Publisher
	RateLimiter *middleware.RateLimiter
	Health      func(ctx context.Context) error

	AllowedOrigins []string
	MaxUploadBytes int64
	ImageURLExpiry time.Duration
	ProxyTimeout   time.Duration
	ProxyMaxBytes  int64
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	authHandler := NewAuthHandler(d.AuthService, d.Users)
	userHandler := NewUserHandler(d.AuthService, d.Users, d.AuthMW)
	vehicleHandler := NewVehicleHandler(d.Vehicles, d.Bookings)
	bookingHandler := NewBookingHandler(d.Bookings, d.Vehicles, d.Publisher)
	inspectionHandler := NewInspectionHandler(d.Inspections, d.Bookings, d.Blobs, d.Publisher, d.MaxUploadBytes, d.ImageURLExpiry)
	proxyHandler := NewProxyHandler(d.ProxyTimeout, d.ProxyMaxBytes)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r.Context()); err != nil {
				log.WithError(err).Warn("Health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(d.AuthMW.Authenticate)

		r.Post("/auth/login", authHandler.Login)
		r.With(d.AuthMW.RequireRole()).Get("/proxy-image", proxyHandler.ProxyImage)

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/change-password", authHandler.ChangePassword)
		r.Get("/auth/me", authHandler.Me)
		r.Get("/auth/role", authHandler.Role)

		r.Route("/admin/users", func(r chi.Router) {
			// CreateUser re-checks the caller against the store itself.
			r.Post("/", userHandler.CreateUser)
			r.Group(func(r chi.Router) {
				r.Use(d.AuthMW.RequireRole(models.RoleAdmin))
				r.Get("/", userHandler.ListUsers)
				r.Delete("/{id}", userHandler.DeleteUser)
				r.Put("/{id}/role", userHandler.UpdateRole)
			})
		})

		r.Route("/vehicles", func(r chi.Router) {
			r.With(d.AuthMW.RequireRole()).Get("/", vehicleHandler.ListVehicles)
			r.With(d.AuthMW.RequireRole()).Get("/{id}", vehicleHandler.GetVehicle)
			r.Group(func(r chi.Router) {
				r.Use(d.AuthMW.RequireRole(models.RoleAdmin))
				r.Post("/", vehicleHandler.CreateVehicle)
				r.Put("/{id}", vehicleHandler.UpdateVehicle)
				r.Delete("/{id}", vehicleHandler.DeleteVehicle)
				r.Put("/{id}/maintenance", vehicleHandler.SetMaintenance)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.With(d.AuthMW.RequireRole(models.RoleStaff)).Post("/", bookingHandler.CreateBooking)
			r.With(d.AuthMW.RequireRole(models.RoleStaff)).Get("/mine", bookingHandler.ListMyBookings)
			r.With(d.AuthMW.RequireRole(models.RoleReceptionist, models.RoleAdmin)).Get("/", bookingHandler.ListBookings)
			r.With(d.AuthMW.RequireRole()).Get("/{id}", bookingHandler.GetBooking)

			r.Group(func(r chi.Router) {
				r.Use(d.AuthMW.RequireRole(models.RoleReceptionist, models.RoleAdmin))
				r.Post("/{id}/approve", bookingHandler.Approve)
				r.Post("/{id}/reject", bookingHandler.Reject)
			})
			r.Group(func(r chi.Router) {
				r.Use(d.AuthMW.RequireRole(models.RoleReceptionist))
				r.Post("/{id}/key-collected", bookingHandler.KeyCollected)
				r.Post("/{id}/key-returned", bookingHandler.KeyReturned)
			})

			r.With(d.AuthMW.RequireRole(models.RoleStaff)).Post("/{id}/inspections", inspectionHandler.SubmitInspection)
			r.With(d.AuthMW.RequireRole()).Get("/{id}/inspections", inspectionHandler.ListInspections)
			r.With(d.AuthMW.RequireRole()).Get("/{id}/inspection-status", inspectionHandler.InspectionStatus)
		})

		r.Route("/inspections", func(r chi.Router) {
			r.Use(d.AuthMW.RequireRole(models.RoleStaff))
			r.Get("/todo", inspectionHandler.Todo)
			r.Post("/images", inspectionHandler.UploadImage)
		})
	})

	return r
}
