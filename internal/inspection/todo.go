// Package inspection derives which vehicle inspections a booking still owes.
package inspection

import (
	"errors"

	"github.com/ukydev/fleet-portal/internal/models"
)

// SubmissionStatus is the display state of one inspection form on a booking.
type SubmissionStatus string

const (
	StatusSubmitted    SubmissionStatus = "Submitted"
	StatusPending      SubmissionStatus = "Pending"
	StatusNotSubmitted SubmissionStatus = "Not Submitted"
)

var (
	ErrBookingNotApproved    = errors.New("booking is not approved")
	ErrAlreadySubmitted      = errors.New("inspection already submitted for this booking")
	ErrPreInspectionRequired = errors.New("pre-trip inspection must be submitted first")
	ErrKeyNotCollected       = errors.New("vehicle key has not been collected")
)

// Todo is a booking with an outstanding inspection. At most one of the two
// flags is set.
type Todo struct {
	Booking             models.Booking `json:"booking"`
	NeedsPreInspection  bool           `json:"needsPreInspection"`
	NeedsPostInspection bool           `json:"needsPostInspection"`
}

// DeriveTodos returns, in booking order, every approved and non-rejected
// booking that still needs an inspection.
func DeriveTodos(bookings []models.Booking, inspections []models.Inspection) []Todo {
	submitted := index(inspections)

	var todos []Todo
	for _, b := range bookings {
		if !b.IsApproved() {
			continue
		}
		forms := submitted[b.ID]
		switch {
		case !forms.pre:
			todos = append(todos, Todo{Booking: b, NeedsPreInspection: true})
		case !forms.post && b.KeyCollectionStatus:
			todos = append(todos, Todo{Booking: b, NeedsPostInspection: true})
		}
	}
	return todos
}

// Status answers the display state of formType on a single booking.
func Status(booking models.Booking, inspections []models.Inspection, formType models.InspectionFormType) SubmissionStatus {
	forms := index(inspections)[booking.ID]
	if forms.has(formType) {
		return StatusSubmitted
	}
	if allowed(booking, forms, formType) == nil {
		return StatusPending
	}
	return StatusNotSubmitted
}

// CanSubmit reports whether a new formType inspection may be recorded
// against booking, returning the reason when it may not.
func CanSubmit(booking models.Booking, inspections []models.Inspection, formType models.InspectionFormType) error {
	forms := index(inspections)[booking.ID]
	if forms.has(formType) {
		return ErrAlreadySubmitted
	}
	return allowed(booking, forms, formType)
}

type submittedForms struct {
	pre, post bool
}

func (f submittedForms) has(t models.InspectionFormType) bool {
	switch t {
	case models.InspectionPre:
		return f.pre
	case models.InspectionPost:
		return f.post
	}
	return false
}

func index(inspections []models.Inspection) map[string]submittedForms {
	out := make(map[string]submittedForms, len(inspections))
	for _, in := range inspections {
		f := out[in.Booking]
		switch in.InspectionFormType {
		case models.InspectionPre:
			f.pre = true
		case models.InspectionPost:
			f.post = true
		}
		out[in.Booking] = f
	}
	return out
}

// allowed applies the eligibility gating, ignoring whether formType itself
// was already submitted.
func allowed(booking models.Booking, forms submittedForms, formType models.InspectionFormType) error {
	if !booking.IsApproved() {
		return ErrBookingNotApproved
	}
	switch formType {
	case models.InspectionPre:
		return nil
	case models.InspectionPost:
		if !forms.pre {
			return ErrPreInspectionRequired
		}
		if !booking.KeyCollectionStatus {
			return ErrKeyNotCollected
		}
		return nil
	}
	return errors.New("unknown inspection form type")
}
