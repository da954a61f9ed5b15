package models

import (
	"strings"
	"time"
)

// Booking is a staff request for a vehicle over a date window.
type Booking struct {
	ID                  string    `bson:"_id" json:"id"`
	Project             string    `bson:"project" json:"project"`
	Destination         string    `bson:"destination" json:"destination"`
	Passengers          int       `bson:"passengers" json:"passengers"`
	BookingStatus       bool      `bson:"booking_status" json:"bookingStatus"`
	KeyCollectionStatus bool      `bson:"key_collection_status" json:"keyCollectionStatus"`
	KeyReturnStatus     bool      `bson:"key_return_status" json:"keyReturnStatus"`
	BookingDate         time.Time `bson:"booking_date" json:"bookingDate"`
	ReturnDate          time.Time `bson:"return_date" json:"returnDate"`
	CreatedAt           time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time `bson:"updated_at" json:"updatedAt"`
	ManagedBy           string    `bson:"managed_by,omitempty" json:"managedBy,omitempty"`   // Receptionist
	ApprovedBy          string    `bson:"approved_by,omitempty" json:"approvedBy,omitempty"` // Admin or Receptionist
	BookedBy            string    `bson:"booked_by" json:"bookedBy"`                         // Staff
	Vehicle             string    `bson:"vehicle" json:"vehicle"`
	RejectionReason     string    `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
}

// CreateBookingRequest is what staff submit when requesting a vehicle.
type CreateBookingRequest struct {
	Project     string    `json:"project"`
	Destination string    `json:"destination"`
	Passengers  int       `json:"passengers"`
	BookingDate time.Time `json:"bookingDate"`
	ReturnDate  time.Time `json:"returnDate"`
	Vehicle     string    `json:"vehicle"`
}

// RejectBookingRequest carries the mandatory reason for a rejection.
type RejectBookingRequest struct {
	Reason string `json:"reason"`
}

// IsRejected reports a non-empty rejection reason, whatever bookingStatus says.
func (b *Booking) IsRejected() bool {
	return b.RejectionReason != ""
}

// IsApproved reports an approved booking that has not been rejected.
func (b *Booking) IsApproved() bool {
	return b.BookingStatus && !b.IsRejected()
}

// Overlaps reports whether both bookings hold the same vehicle over
// intersecting windows.
func (b *Booking) Overlaps(other *Booking) bool {
	if b.Vehicle != other.Vehicle {
		return false
	}
	return !b.BookingDate.After(other.ReturnDate) && !other.BookingDate.After(b.ReturnDate)
}

// Validate checks a new booking request.
func (r *CreateBookingRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Project) == "":
		return fieldError("project", "is required")
	case strings.TrimSpace(r.Destination) == "":
		return fieldError("destination", "is required")
	case r.Passengers <= 0:
		return fieldError("passengers", "must be positive")
	case r.Vehicle == "":
		return fieldError("vehicle", "is required")
	case r.BookingDate.IsZero() || r.ReturnDate.IsZero():
		return fieldError("bookingDate", "and returnDate are required")
	case r.ReturnDate.Before(r.BookingDate):
		return fieldError("returnDate", "must not precede bookingDate")
	}
	return nil
}
