package models

import (
	"fmt"
	"time"
)

// InspectionFormType distinguishes the pre-trip check from the post-trip check.
type InspectionFormType string

const (
	InspectionPre  InspectionFormType = "pre"
	InspectionPost InspectionFormType = "post"
)

// MaxInspectionImages is the number of photo slots on a form.
const MaxInspectionImages = 6

// InspectionParts lists the fixed part checks every form carries.
var InspectionParts = []string{
	"engineOil",
	"coolant",
	"brakeFluid",
	"battery",
	"tyres",
	"spareTyre",
	"brakes",
	"headlights",
	"tailLights",
	"indicators",
	"horn",
	"wipers",
	"mirrors",
	"seatBelts",
	"fireExtinguisher",
}

// ImageSlots lists the named photo positions.
var ImageSlots = []string{
	"front",
	"back",
	"left",
	"right",
	"interior",
	"dashboard",
}

// PartCheck is the result for one inspected part.
type PartCheck struct {
	FunctionalStatus bool   `bson:"functional_status" json:"functionalStatus"`
	Remark           string `bson:"remark,omitempty" json:"remark,omitempty"`
}

// Inspection is a submitted pre- or post-trip vehicle check.
type Inspection struct {
	ID                     string               `bson:"_id" json:"id"`
	InspectionFormType     InspectionFormType   `bson:"inspection_form_type" json:"inspectionFormType"`
	InspectionDate         time.Time            `bson:"inspection_date" json:"inspectionDate"`
	NextVehicleServiceDate time.Time            `bson:"next_vehicle_service_date" json:"nextVehicleServiceDate"`
	VehicleMilleage        float64              `bson:"vehicle_milleage" json:"vehicleMilleage"`
	Parts                  map[string]PartCheck `bson:"parts" json:"parts"`
	Images                 map[string]string    `bson:"images,omitempty" json:"images,omitempty"`
	CreatedAt              time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt              time.Time            `bson:"updated_at" json:"updatedAt"`
	Booking                string               `bson:"booking" json:"booking"`
}

// IsValidFormType checks the form type against the two known values.
func IsValidFormType(t InspectionFormType) bool {
	return t == InspectionPre || t == InspectionPost
}

// Validate checks the form type, the full part set and the image slots.
func (in *Inspection) Validate() error {
	if !IsValidFormType(in.InspectionFormType) {
		return fieldError("inspectionFormType", "must be pre or post")
	}
	if in.VehicleMilleage < 0 {
		return fieldError("vehicleMilleage", "must not be negative")
	}
	if in.InspectionDate.IsZero() {
		return fieldError("inspectionDate", "is required")
	}
	if len(in.Parts) != len(InspectionParts) {
		return fieldError("parts", fmt.Sprintf("must contain exactly %d checks", len(InspectionParts)))
	}
	for _, name := range InspectionParts {
		if _, ok := in.Parts[name]; !ok {
			return fieldError("parts", "is missing "+name)
		}
	}
	if len(in.Images) > MaxInspectionImages {
		return fieldError("images", fmt.Sprintf("accepts at most %d photos", MaxInspectionImages))
	}
	for slot := range in.Images {
		if !isImageSlot(slot) {
			return fieldError("images", "has unknown slot "+slot)
		}
	}
	return nil
}

func isImageSlot(slot string) bool {
	for _, s := range ImageSlots {
		if s == slot {
			return true
		}
	}
	return false
}
