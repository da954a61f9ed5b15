package db

import (
	"context"
	"errors"

	"github.com/ukydev/fleet-portal/internal/models"
)

// Collection names
const (
	UsersCollection       = "users"
	VehiclesCollection    = "vehicles"
	BookingsCollection    = "bookings"
	InspectionsCollection = "inspections"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrDuplicate     = errors.New("document already exists")
	ErrNilCollection = errors.New("mongo collection is nil")
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, temporary bool) error
	UpdateRole(ctx context.Context, id string, role models.Role) error
	DeleteUser(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
	GetRole(ctx context.Context, id string) (models.Role, error)
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error
	SetManualMaintenance(ctx context.Context, id string, enabled bool) error
	DeleteVehicle(ctx context.Context, id string) error
}

// BookingCollection defines the interface for booking data operations.
type BookingCollection interface {
	InsertBooking(ctx context.Context, booking models.Booking) error
	FindBookingByID(ctx context.Context, id string) (*models.Booking, error)
	FindBookings(ctx context.Context) ([]models.Booking, error)
	FindBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	FindBookingsByVehicle(ctx context.Context, vehicleID string) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, id string, fields BookingUpdate) (*models.Booking, error)
}

// BookingUpdate lists the mutable booking fields. Nil members are left alone.
type BookingUpdate struct {
	BookingStatus       *bool
	KeyCollectionStatus *bool
	KeyReturnStatus     *bool
	RejectionReason     *string
	ManagedBy           *string
	ApprovedBy          *string
}

// InspectionCollection defines the interface for inspection data operations.
type InspectionCollection interface {
	InsertInspection(ctx context.Context, inspection models.Inspection) error
	FindInspectionsByBooking(ctx context.Context, bookingID string) ([]models.Inspection, error)
	FindInspectionsByBookings(ctx context.Context, bookingIDs []string) ([]models.Inspection, error)
}
