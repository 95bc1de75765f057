package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/auth"
	"github.com/gdg-garage/facility-api/internal/booking"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
)

type BookingHandler struct {
	bookings *booking.Service
	logger   *zap.Logger
}

func NewBookingHandler(bookings *booking.Service, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

type ReservationResponse struct {
	ID           uint        `json:"id"`
	Reference    string      `json:"reference" doc:"Confirmation code"`
	ResidentID   uint        `json:"resident_id"`
	FacilityID   uint        `json:"facility_id"`
	FacilityName string      `json:"facility_name,omitempty"`
	Date         string      `json:"date" doc:"YYYY-MM-DD"`
	Slot         models.Slot `json:"slot"`
	SlotLabel    string      `json:"slot_label"`
	CreatedAt    time.Time   `json:"created_at"`
}

func newReservationResponse(r models.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:           r.ID,
		Reference:    r.Reference,
		ResidentID:   r.ResidentID,
		FacilityID:   r.FacilityID,
		FacilityName: r.Facility.Name,
		Date:         r.Date,
		Slot:         r.Slot,
		SlotLabel:    r.Slot.Label(),
		CreatedAt:    r.CreatedAt,
	}
}

type CreateBookingRequest struct {
	Body struct {
		FacilityID uint   `json:"facility_id" minimum:"1" doc:"Facility to book"`
		Date       string `json:"date" minLength:"1" doc:"Day of the reservation, YYYY-MM-DD or an RFC 3339 timestamp"`
		Slot       string `json:"slot" enum:"S_09_10,S_10_11,S_11_12,S_14_15,S_15_16" doc:"Time window"`
	}
}

type ReservationOutput struct {
	Body ReservationResponse
}

func (h *BookingHandler) HandleCreate(ctx context.Context, input *CreateBookingRequest) (*ReservationOutput, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	r, err := h.bookings.CreateReservation(ctx, p.UserID, booking.CreateRequest{
		FacilityID: input.Body.FacilityID,
		Date:       input.Body.Date,
		Slot:       input.Body.Slot,
	})
	if err != nil {
		return nil, bookingError(h.logger, err)
	}

	return &ReservationOutput{Body: newReservationResponse(*r)}, nil
}

type MyBookingsResponse struct {
	Body []ReservationResponse
}

func (h *BookingHandler) HandleMine(ctx context.Context, input *struct{}) (*MyBookingsResponse, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	reservations, err := h.bookings.ListReservationsForResident(ctx, p.UserID)
	if err != nil {
		return nil, bookingError(h.logger, err)
	}

	body := make([]ReservationResponse, len(reservations))
	for i, r := range reservations {
		body[i] = newReservationResponse(r)
	}
	return &MyBookingsResponse{Body: body}, nil
}

type CancelBookingRequest struct {
	ID uint `path:"id"`
}

func (h *BookingHandler) HandleCancel(ctx context.Context, input *CancelBookingRequest) (*struct{}, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.bookings.CancelReservation(ctx, p.UserID, input.ID); err != nil {
		return nil, bookingError(h.logger, err)
	}
	return nil, nil
}

// bookingError maps the booking error taxonomy onto HTTP statuses. Storage
// failures are the only server errors.
func bookingError(logger *zap.Logger, err error) error {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, booking.ErrFacilityNotFound):
		return huma.Error404NotFound("Facility not found")
	case errors.Is(err, booking.ErrReservationNotFound):
		return huma.Error404NotFound("Reservation not found")
	case errors.Is(err, booking.ErrDuplicateReservation):
		return huma.Error409Conflict("You have already booked this slot")
	case errors.Is(err, booking.ErrSlotFull):
		return huma.Error409Conflict("Slot is full")
	default:
		logger.Error("Booking storage failure", zap.Error(err))
		return huma.Error500InternalServerError("Failed to process booking")
	}
}

func currentUser(ctx context.Context) (auth.Principal, error) {
	return auth.CurrentUser(ctx)
}
