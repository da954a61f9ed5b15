package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/events"
	"github.com/ukydev/fleet-portal/internal/inspection"
	"github.com/ukydev/fleet-portal/internal/models"
	"github.com/ukydev/fleet-portal/internal/storage"
)

// InspectionHandler serves pre- and post-trip inspection forms.
type InspectionHandler struct {
	inspections db.InspectionCollection
	bookings    db.BookingCollection
	blobs       storage.BlobStore
	publisher   events.Publisher
	maxUpload   int64
	urlExpiry   time.Duration
}

// NewInspectionHandler wires the handler. blobs may be nil when no bucket is
// configured, in which case photo uploads answer 503.
func NewInspectionHandler(inspections db.InspectionCollection, bookings db.BookingCollection, blobs storage.BlobStore, publisher events.Publisher, maxUpload int64, urlExpiry time.Duration) *InspectionHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &InspectionHandler{
		inspections: inspections,
		bookings:    bookings,
		blobs:       blobs,
		publisher:   publisher,
		maxUpload:   maxUpload,
		urlExpiry:   urlExpiry,
	}
}

// InspectionStatusResponse is the display state of both forms of a booking.
type InspectionStatusResponse struct {
	BookingID string                      `json:"bookingId"`
	Pre       inspection.SubmissionStatus `json:"pre"`
	Post      inspection.SubmissionStatus `json:"post"`
}

// ImageUploadResponse names a stored inspection photo.
type ImageUploadResponse struct {
	Key  string `json:"key"`
	Slot string `json:"slot"`
	URL  string `json:"url,omitempty"`
}

// SubmitInspection records an inspection for the caller's own booking.
func (h *InspectionHandler) SubmitInspection(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}
	booking, err := h.bookings.FindBookingByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	if booking.BookedBy != claims.UserID {
		writeError(w, "Only the staff member who booked the trip can submit its inspections", http.StatusForbidden)
		return
	}

	var form models.Inspection
	if !decodeJSON(w, r, &form) {
		return
	}
	form.ID = models.GenerateInspectionID()
	form.Booking = booking.ID
	if err := form.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	existing, err := h.inspections.FindInspectionsByBooking(r.Context(), booking.ID)
	if err != nil {
		writeStoreError(w, err, "Inspection")
		return
	}
	if err := inspection.CanSubmit(*booking, existing, form.InspectionFormType); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	if err := h.inspections.InsertInspection(r.Context(), form); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			writeError(w, inspection.ErrAlreadySubmitted.Error(), http.StatusConflict)
			return
		}
		writeStoreError(w, err, "Inspection")
		return
	}

	err = h.publisher.Publish(r.Context(), events.Event{
		Type:      events.InspectionSubmitted,
		BookingID: booking.ID,
		VehicleID: booking.Vehicle,
		BookedBy:  booking.BookedBy,
		Actor:     claims.UserID,
		FormType:  string(form.InspectionFormType),
	})
	if err != nil {
		log.WithError(err).WithField("booking_id", booking.ID).Warn("Failed to publish inspection event")
	}
	writeJSON(w, http.StatusCreated, form)
}

// ListInspections returns the inspections of a booking.
func (h *InspectionHandler) ListInspections(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.visibleBooking(w, r)
	if !ok {
		return
	}
	list, err := h.inspections.FindInspectionsByBooking(r.Context(), booking.ID)
	if err != nil {
		writeStoreError(w, err, "Inspection")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// InspectionStatus reports Submitted, Pending or Not Submitted for both forms.
func (h *InspectionHandler) InspectionStatus(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.visibleBooking(w, r)
	if !ok {
		return
	}
	list, err := h.inspections.FindInspectionsByBooking(r.Context(), booking.ID)
	if err != nil {
		writeStoreError(w, err, "Inspection")
		return
	}
	writeJSON(w, http.StatusOK, InspectionStatusResponse{
		BookingID: booking.ID,
		Pre:       inspection.Status(*booking, list, models.InspectionPre),
		Post:      inspection.Status(*booking, list, models.InspectionPost),
	})
}

// Todo lists the caller's bookings that still owe an inspection.
func (h *InspectionHandler) Todo(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}
	bookings, err := h.bookings.FindBookingsByUser(r.Context(), claims.UserID)
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	list, err := h.inspections.FindInspectionsByBookings(r.Context(), ids)
	if err != nil {
		writeStoreError(w, err, "Inspection")
		return
	}

	todos := inspection.DeriveTodos(bookings, list)
	if todos == nil {
		todos = []inspection.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

// UploadImage stores one inspection photo. The multipart form carries
// "file", "bookingId" and "slot".
func (h *InspectionHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	claims, _, ok := caller(w, r)
	if !ok {
		return
	}
	if h.blobs == nil {
		writeError(w, storage.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	slot := r.FormValue("slot")
	if !isImageSlot(slot) {
		writeError(w, "Unknown image slot", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "Missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, "Only image uploads are accepted", http.StatusBadRequest)
		return
	}

	booking, err := h.bookings.FindBookingByID(r.Context(), r.FormValue("bookingId"))
	if err != nil {
		writeStoreError(w, err, "Booking")
		return
	}
	if booking.BookedBy != claims.UserID {
		writeError(w, "Only the staff member who booked the trip can upload its photos", http.StatusForbidden)
		return
	}

	key, err := h.blobs.Upload(r.Context(), "inspections/"+booking.ID+"/"+slot, header.Filename, file, contentType)
	if err != nil {
		log.WithError(err).WithField("booking_id", booking.ID).Error("Failed to upload inspection photo")
		writeError(w, "Failed to store image", http.StatusBadGateway)
		return
	}

	resp := ImageUploadResponse{Key: key, Slot: slot}
	if url, err := h.blobs.PresignedGetURL(r.Context(), key, h.urlExpiry); err == nil {
		resp.URL = url
	} else {
		log.WithError(err).WithField("key", key).Warn("Failed to presign inspection photo")
	}
	writeJSON(w, http.StatusCreated, resp)
}

// visibleBooking loads the booking in the URL. Staff only see their own.
func (h *InspectionHandler) visibleBooking(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	claims, role, ok := caller(w, r)
	if !ok {
		return nil, false
	}
	booking, err := h.bookings.FindBookingByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Booking")
		return nil, false
	}
	if role == models.RoleStaff && booking.BookedBy != claims.UserID {
		writeError(w, "Booking not found", http.StatusNotFound)
		return nil, false
	}
	return booking, true
}

func isImageSlot(slot string) bool {
	for _, s := range models.ImageSlots {
		if s == slot {
			return true
		}
	}
	return false
}
