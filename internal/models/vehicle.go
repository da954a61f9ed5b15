package models

import (
	"time"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID                string    `bson:"_id" json:"id"`
	PlateNumber       string    `bson:"plate_number" json:"plateNumber"`
	Brand             string    `bson:"brand" json:"brand"`
	Model             string    `bson:"model" json:"model"`
	Year              int       `bson:"year" json:"year"`
	Type              string    `bson:"type" json:"type"`           // "Car", "Van", "Truck", ...
	FuelType          string    `bson:"fuel_type" json:"fuelType"` // "Petrol", "Diesel", "EV", ...
	SeatCapacity      int       `bson:"seat_capacity" json:"seatCapacity"`
	MaintenanceStatus bool      `bson:"maintenance_status" json:"maintenanceStatus"`
	ManualMaintenance *bool     `bson:"manual_maintenance,omitempty" json:"manualMaintenance,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updatedAt"`
}

// ManualOverride reports whether an admin forced the vehicle into maintenance.
func (v *Vehicle) ManualOverride() bool {
	return v.ManualMaintenance != nil && *v.ManualMaintenance
}

// UnderMaintenance derives the maintenance status at now: forced by the manual
// override, or held by an approved booking whose window covers now and whose
// key has not come back yet.
func (v *Vehicle) UnderMaintenance(bookings []Booking, now time.Time) bool {
	if v.ManualOverride() {
		return true
	}
	for i := range bookings {
		b := &bookings[i]
		if b.Vehicle != v.ID || !b.IsApproved() || b.KeyReturnStatus {
			continue
		}
		if !now.Before(b.BookingDate) && !now.After(b.ReturnDate) {
			return true
		}
	}
	return false
}

// Validate checks the fields an admin must supply.
func (v *Vehicle) Validate() error {
	switch {
	case v.PlateNumber == "":
		return fieldError("plateNumber", "is required")
	case v.Brand == "":
		return fieldError("brand", "is required")
	case v.Model == "":
		return fieldError("model", "is required")
	case v.Year < 1900:
		return fieldError("year", "is out of range")
	case v.SeatCapacity <= 0:
		return fieldError("seatCapacity", "must be positive")
	}
	return nil
}
