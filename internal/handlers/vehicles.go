package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/models"
)

// VehicleHandler serves the vehicle roster.
type VehicleHandler struct {
	vehicles db.VehicleCollection
	bookings db.BookingCollection
	now      func() time.Time
}

func NewVehicleHandler(vehicles db.VehicleCollection, bookings db.BookingCollection) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, bookings: bookings, now: time.Now}
}

// ListVehicles returns the roster with the maintenance status derived from
// the admin override and the trips currently in progress.
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.FindVehicles(r.Context())
	if err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	bookings, err := h.bookings.FindBookings(r.Context())
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}

	now := h.now()
	for i := range vehicles {
		vehicles[i].MaintenanceStatus = vehicles[i].UnderMaintenance(bookings, now)
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// GetVehicle returns one vehicle with its derived maintenance status.
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	bookings, err := h.bookings.FindBookingsByVehicle(r.Context(), vehicle.ID)
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	vehicle.MaintenanceStatus = vehicle.UnderMaintenance(bookings, h.now())
	writeJSON(w, http.StatusOK, vehicle)
}

func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var vehicle models.Vehicle
	if !decodeJSON(w, r, &vehicle) {
		return
	}
	if err := vehicle.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	vehicle.ID = models.GenerateVehicleID()
	vehicle.MaintenanceStatus = vehicle.ManualOverride()

	if err := h.vehicles.InsertVehicle(r.Context(), vehicle); err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	log.WithFields(log.Fields{"vehicle_id": vehicle.ID, "plate": vehicle.PlateNumber}).Info("Vehicle added")
	writeJSON(w, http.StatusCreated, vehicle)
}

func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var vehicle models.Vehicle
	if !decodeJSON(w, r, &vehicle) {
		return
	}
	if err := vehicle.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}
	if err := h.vehicles.UpdateVehicle(r.Context(), id, vehicle); err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	updated, err := h.vehicles.FindVehicleByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteVehicle removes a vehicle that has no trip in progress.
func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bookings, err := h.bookings.FindBookingsByVehicle(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	for _, b := range bookings {
		if b.IsApproved() && !b.KeyReturnStatus {
			writeError(w, "Vehicle has an approved booking that is not finished", http.StatusConflict)
			return
		}
	}
	if err := h.vehicles.DeleteVehicle(r.Context(), id); err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMaintenance toggles the admin maintenance override.
func (h *VehicleHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.vehicles.SetManualMaintenance(r.Context(), id, req.Enabled); err != nil {
		writeStoreError(w, err, "Vehicle")
		return
	}
	log.WithFields(log.Fields{"vehicle_id": id, "enabled": req.Enabled}).Info("Maintenance override changed")
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "manualMaintenance": req.Enabled})
}
