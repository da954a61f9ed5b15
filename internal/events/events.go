// Package events publishes booking lifecycle notifications.
package events

import (
	"context"
	"time"
)

// Type names a booking lifecycle transition.
type Type string

const (
	BookingCreated      Type = "booking.created"
	BookingApproved     Type = "booking.approved"
	BookingRejected     Type = "booking.rejected"
	KeyCollected        Type = "key.collected"
	KeyReturned         Type = "key.returned"
	InspectionSubmitted Type = "inspection.submitted"
)

// Event is the JSON payload sent for every transition.
type Event struct {
	Type      Type      `json:"type"`
	BookingID string    `json:"bookingId"`
	VehicleID string    `json:"vehicleId,omitempty"`
	BookedBy  string    `json:"bookedBy,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	FormType  string    `json:"formType,omitempty"`
	Time      time.Time `json:"time"`
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
