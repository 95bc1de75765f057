package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/booking"
	"github.com/gdg-garage/facility-api/internal/facility"
	"github.com/gdg-garage/facility-api/internal/listing"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
)

type FacilityHandler struct {
	directory *facility.Directory
	bookings  *booking.Service
	logger    *zap.Logger
}

func NewFacilityHandler(directory *facility.Directory, bookings *booking.Service, logger *zap.Logger) *FacilityHandler {
	return &FacilityHandler{directory: directory, bookings: bookings, logger: logger}
}

type FacilityResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Capacity    int       `json:"capacity"`
	CreatedAt   time.Time `json:"created_at"`
}

func newFacilityResponse(f models.Facility) FacilityResponse {
	return FacilityResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Capacity:    f.Capacity,
		CreatedAt:   f.CreatedAt,
	}
}

type ListQuery struct {
	Page      int    `query:"page" default:"1" minimum:"1" doc:"1-based page number"`
	Limit     int    `query:"limit" default:"10" minimum:"1" maximum:"100" doc:"Page size"`
	Search    string `query:"search" doc:"Case-insensitive substring filter"`
	SortOrder string `query:"sortOrder" enum:"asc,desc" default:"asc"`
}

func (q ListQuery) params(sortBy string) listing.Params {
	return listing.Params{
		Page:      q.Page,
		Limit:     q.Limit,
		Search:    q.Search,
		SortBy:    sortBy,
		SortOrder: q.SortOrder,
	}
}

type ListFacilitiesRequest struct {
	ListQuery
	SortBy string `query:"sortBy" enum:"id,name,capacity,createdAt" default:"name"`
}

type ListFacilitiesResponse struct {
	Body listing.Page[FacilityResponse]
}

func (h *FacilityHandler) HandleList(ctx context.Context, input *ListFacilitiesRequest) (*ListFacilitiesResponse, error) {
	page, err := h.directory.List(ctx, input.params(input.SortBy))
	if err != nil {
		return nil, h.facilityError(err)
	}

	items := make([]FacilityResponse, len(page.Items))
	for i, f := range page.Items {
		items[i] = newFacilityResponse(f)
	}

	return &ListFacilitiesResponse{Body: listing.Page[FacilityResponse]{
		Items:       items,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		Total:       page.Total,
	}}, nil
}

type FacilityIDRequest struct {
	ID uint `path:"id"`
}

type FacilityOutput struct {
	Body FacilityResponse
}

func (h *FacilityHandler) HandleGet(ctx context.Context, input *FacilityIDRequest) (*FacilityOutput, error) {
	f, err := h.directory.Get(ctx, input.ID)
	if err != nil {
		return nil, h.facilityError(err)
	}
	return &FacilityOutput{Body: newFacilityResponse(*f)}, nil
}

type FacilityBody struct {
	Name        string `json:"name" minLength:"1" maxLength:"120" doc:"Display name"`
	Description string `json:"description,omitempty" maxLength:"2000"`
	Capacity    int    `json:"capacity" minimum:"1" doc:"Reservations admitted per date and slot"`
}

func (b FacilityBody) fields() facility.Fields {
	return facility.Fields{Name: b.Name, Description: b.Description, Capacity: b.Capacity}
}

type CreateFacilityRequest struct {
	Body FacilityBody
}

func (h *FacilityHandler) HandleCreate(ctx context.Context, input *CreateFacilityRequest) (*FacilityOutput, error) {
	f, err := h.directory.Create(ctx, input.Body.fields())
	if err != nil {
		return nil, h.facilityError(err)
	}
	h.logger.Info("Facility created", zap.Uint("facility_id", f.ID), zap.String("name", f.Name))
	return &FacilityOutput{Body: newFacilityResponse(*f)}, nil
}

type UpdateFacilityRequest struct {
	ID   uint `path:"id"`
	Body FacilityBody
}

func (h *FacilityHandler) HandleUpdate(ctx context.Context, input *UpdateFacilityRequest) (*FacilityOutput, error) {
	f, err := h.directory.Update(ctx, input.ID, input.Body.fields())
	if err != nil {
		return nil, h.facilityError(err)
	}
	return &FacilityOutput{Body: newFacilityResponse(*f)}, nil
}

func (h *FacilityHandler) HandleDelete(ctx context.Context, input *FacilityIDRequest) (*struct{}, error) {
	if err := h.directory.Delete(ctx, input.ID); err != nil {
		return nil, h.facilityError(err)
	}
	h.logger.Info("Facility deleted", zap.Uint("facility_id", input.ID))
	return nil, nil
}

type AvailabilityRequest struct {
	ID   uint   `path:"id"`
	Date string `query:"date" required:"true" doc:"Day to inspect, YYYY-MM-DD"`
}

type AvailabilityResponse struct {
	Body struct {
		FacilityID uint                       `json:"facility_id"`
		Date       string                     `json:"date"`
		Slots      []booking.SlotAvailability `json:"slots"`
	}
}

func (h *FacilityHandler) HandleAvailability(ctx context.Context, input *AvailabilityRequest) (*AvailabilityResponse, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	day, err := h.bookings.Availability(ctx, p.UserID, input.ID, input.Date)
	if err != nil {
		return nil, bookingError(h.logger, err)
	}

	res := &AvailabilityResponse{}
	res.Body.FacilityID = day.FacilityID
	res.Body.Date = day.Date
	res.Body.Slots = day.Slots
	return res, nil
}

func (h *FacilityHandler) facilityError(err error) error {
	switch {
	case errors.Is(err, facility.ErrNotFound):
		return huma.Error404NotFound("Facility not found")
	case errors.Is(err, facility.ErrInvalid), errors.Is(err, facility.ErrInvalidQuery):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, facility.ErrInUse):
		return huma.Error409Conflict("Facility has reservations and cannot be deleted")
	default:
		h.logger.Error("Facility directory failure", zap.Error(err))
		return huma.Error500InternalServerError("Failed to process facility request")
	}
}
