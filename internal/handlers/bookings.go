package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/events"
	"github.com/ukydev/fleet-portal/internal/models"
)

// BookingHandler serves the booking lifecycle: request, approval or
// rejection, key collection and return.
type BookingHandler struct {
	bookings  db.BookingCollection
	vehicles  db.VehicleCollection
	publisher events.Publisher
	now       func() time.Time
}

func NewBookingHandler(bookings db.BookingCollection, vehicles db.VehicleCollection, publisher events.Publisher) *BookingHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BookingHandler{bookings: bookings, vehicles: vehicles, publisher: publisher, now: time.Now}
}

// CreateBooking records a staff trip request for a vehicle.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.ReturnDate.Before(h.now()) {
		writeError(w, "returnDate must be in the future", http.StatusBadRequest)
		return
	}

	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), req.Vehicle)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, "Unknown vehicle", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	if vehicle.SeatCapacity > 0 && req.Passengers > vehicle.SeatCapacity {
		writeError(w, "Passengers exceed the vehicle seat capacity", http.StatusBadRequest)
		return
	}
	if vehicle.ManualOverride() {
		writeError(w, "Vehicle is under maintenance", http.StatusConflict)
		return
	}

	booking := models.Booking{
		ID:          models.GenerateBookingID(),
		Project:     strings.TrimSpace(req.Project),
		Destination: strings.TrimSpace(req.Destination),
		Passengers:  req.Passengers,
		BookingDate: req.BookingDate,
		ReturnDate:  req.ReturnDate,
		BookedBy:    claims.UserID,
		Vehicle:     vehicle.ID,
	}
	if conflict, err := h.conflicting(r.Context(), &booking); err != nil {
		writeStoreError(w, err, "Booking")
		return
	} else if conflict != nil {
		writeError(w, "Vehicle is already booked for "+conflict.ID+" in that period", http.StatusConflict)
		return
	}

	if err := h.bookings.InsertBooking(r.Context(), booking); err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	h.publish(r.Context(), events.BookingCreated, &booking, claims.UserID, "")
	writeJSON(w, http.StatusCreated, booking)
}

// ListMyBookings lists the caller's own bookings.
func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}
	bookings, err := h.bookings.FindBookingsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ListBookings lists every booking, optionally filtered by
// ?status=pending|approved|rejected.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.FindBookings(r.Context())
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusOK, bookings)
		return
	}
	filtered := []models.Booking{}
	for _, b := range bookings {
		switch {
		case status == "pending" && !b.BookingStatus && !b.IsRejected(),
			status == "approved" && b.IsApproved(),
			status == "rejected" && b.IsRejected():
			filtered = append(filtered, b)
		}
	}
	writeJSON(w, http.StatusOK, filtered)
}

// GetBooking returns one booking. Staff may only read their own.
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	claims, role, ok := caller(w, r)
	if !ok {
		return
	}
	booking, err := h.bookings.FindBookingByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	if role == models.RoleStaff && booking.BookedBy != claims.UserID {
		writeError(w, "Booking not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Approve accepts a pending booking.
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims, role, ok := caller(w, r)
	if !ok {
		return
	}
	booking, ok := h.load(w, r)
	if !ok {
		return
	}
	switch {
	case booking.IsRejected():
		writeError(w, "Booking has been rejected", http.StatusConflict)
		return
	case booking.BookingStatus:
		writeError(w, "Booking is already approved", http.StatusConflict)
		return
	}
	if conflict, err := h.conflicting(r.Context(), booking); err != nil {
		writeStoreError(w, err, "Booking")
		return
	} else if conflict != nil {
		writeError(w, "Vehicle is already booked for "+conflict.ID+" in that period", http.StatusConflict)
		return
	}

	approved := true
	update := db.BookingUpdate{BookingStatus: &approved, ApprovedBy: &claims.UserID}
	if role == models.RoleReceptionist {
		update.ManagedBy = &claims.UserID
	}
	h.apply(w, r, booking.ID, update, events.BookingApproved, claims.UserID, "")
}

// Reject declines a booking with a reason.
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	claims, role, ok := caller(w, r)
	if !ok {
		return
	}
	var req models.RejectBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		writeError(w, "A rejection reason is required", http.StatusBadRequest)
		return
	}

	booking, ok := h.load(w, r)
	if !ok {
		return
	}
	if booking.KeyCollectionStatus {
		writeError(w, "Vehicle key has already been collected", http.StatusConflict)
		return
	}

	approved := false
	update := db.BookingUpdate{BookingStatus: &approved, RejectionReason: &reason}
	if role == models.RoleReceptionist {
		update.ManagedBy = &claims.UserID
	}
	h.apply(w, r, booking.ID, update, events.BookingRejected, claims.UserID, reason)
}

// KeyCollected records that the staff member picked up the vehicle key.
func (h *BookingHandler) KeyCollected(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}
	booking, ok := h.load(w, r)
	if !ok {
		return
	}
	switch {
	case !booking.IsApproved():
		writeError(w, "Booking is not approved", http.StatusConflict)
		return
	case booking.KeyCollectionStatus:
		writeError(w, "Key has already been collected", http.StatusConflict)
		return
	}

	collected := true
	h.apply(w, r, booking.ID, db.BookingUpdate{KeyCollectionStatus: &collected, ManagedBy: &claims.UserID},
		events.KeyCollected, claims.UserID, "")
}

// KeyReturned records that the vehicle key was handed back.
func (h *BookingHandler) KeyReturned(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}
	booking, ok := h.load(w, r)
	if !ok {
		return
	}
	switch {
	case !booking.KeyCollectionStatus:
		writeError(w, "Key has not been collected", http.StatusConflict)
		return
	case booking.KeyReturnStatus:
		writeError(w, "Key has already been returned", http.StatusConflict)
		return
	}

	returned := true
	h.apply(w, r, booking.ID, db.BookingUpdate{KeyReturnStatus: &returned, ManagedBy: &claims.UserID},
		events.KeyReturned, claims.UserID, "")
}

func (h *BookingHandler) load(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	booking, err := h.bookings.FindBookingByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Booking")
		return nil, false
	}
	return booking, true
}

func (h *BookingHandler) apply(w http.ResponseWriter, r *http.Request, id string, update db.BookingUpdate, event events.Type, actor, reason string) {
	updated, err := h.bookings.UpdateBooking(r.Context(), id, update)
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	h.publish(r.Context(), event, updated, actor, reason)
	writeJSON(w, http.StatusOK, updated)
}

// conflicting returns an approved, unfinished booking of the same vehicle
// whose period overlaps b.
func (h *BookingHandler) conflicting(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	others, err := h.bookings.FindBookingsByVehicle(ctx, b.Vehicle)
	if err != nil {
		return nil, err
	}
	for i := range others {
		other := &others[i]
		if other.ID == b.ID || !other.IsApproved() || other.KeyReturnStatus {
			continue
		}
		if b.Overlaps(other) {
			return other, nil
		}
	}
	return nil, nil
}

func (h *BookingHandler) publish(ctx context.Context, t events.Type, b *models.Booking, actor, reason string) {
	err := h.publisher.Publish(ctx, events.Event{
		Type:      t,
		BookingID: b.ID,
		VehicleID: b.Vehicle,
		BookedBy:  b.BookedBy,
		Actor:     actor,
		Reason:    reason,
		Time:      h.now().UTC(),
	})
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"booking_id": b.ID, "event": t}).Warn("Failed to publish booking event")
	}
}
