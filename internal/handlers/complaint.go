package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ComplaintHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewComplaintHandler(db *gorm.DB, logger *zap.Logger) *ComplaintHandler {
	return &ComplaintHandler{db: db, logger: logger}
}

// ResidentSummary identifies the resident who filed a complaint, visitor or
// bill in admin listings.
type ResidentSummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	ApartmentNo string `json:"apartment_no"`
}

func newResidentSummary(u models.User) *ResidentSummary {
	if u.ID == 0 {
		return nil
	}
	return &ResidentSummary{ID: u.ID, Name: u.Name, ApartmentNo: u.ApartmentNo}
}

type ComplaintResponse struct {
	ID          uint                   `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Status      models.ComplaintStatus `json:"status"`
	UserID      uint                   `json:"user_id"`
	User        *ResidentSummary       `json:"user,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func newComplaintResponse(c models.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Status:      c.Status,
		UserID:      c.UserID,
		User:        newResidentSummary(c.User),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type ListComplaintsResponse struct {
	Body []ComplaintResponse
}

type ComplaintOutput struct {
	Body ComplaintResponse
}

type CreateComplaintRequest struct {
	Body struct {
		Title       string `json:"title" minLength:"1" maxLength:"200"`
		Description string `json:"description" minLength:"1" maxLength:"5000"`
	}
}

func (h *ComplaintHandler) HandleCreate(ctx context.Context, input *CreateComplaintRequest) (*ComplaintOutput, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Body.Title)
	description := strings.TrimSpace(input.Body.Description)
	if title == "" || description == "" {
		return nil, huma.Error400BadRequest("Title and description are required")
	}

	complaint := models.Complaint{
		Title:       title,
		Description: description,
		Status:      models.ComplaintPending,
		UserID:      p.UserID,
	}
	if err := h.db.WithContext(ctx).Omit("User").Create(&complaint).Error; err != nil {
		h.logger.Error("Failed to create complaint", zap.Uint("user_id", p.UserID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to create complaint")
	}

	h.logger.Info("Complaint filed", zap.Uint("complaint_id", complaint.ID), zap.Uint("user_id", p.UserID))
	return &ComplaintOutput{Body: newComplaintResponse(complaint)}, nil
}

func (h *ComplaintHandler) HandleMine(ctx context.Context, input *struct{}) (*ListComplaintsResponse, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return h.list(ctx, h.db.WithContext(ctx).Where("user_id = ?", p.UserID))
}

func (h *ComplaintHandler) HandleList(ctx context.Context, input *struct{}) (*ListComplaintsResponse, error) {
	return h.list(ctx, h.db.WithContext(ctx).Preload("User"))
}

func (h *ComplaintHandler) list(ctx context.Context, q *gorm.DB) (*ListComplaintsResponse, error) {
	var complaints []models.Complaint
	if err := q.Order("created_at DESC").Order("id DESC").Find(&complaints).Error; err != nil {
		h.logger.Error("Failed to list complaints", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to fetch complaints")
	}

	body := make([]ComplaintResponse, len(complaints))
	for i, c := range complaints {
		body[i] = newComplaintResponse(c)
	}
	return &ListComplaintsResponse{Body: body}, nil
}

type UpdateComplaintStatusRequest struct {
	ID   uint `path:"id"`
	Body struct {
		Status models.ComplaintStatus `json:"status" enum:"Pending,In Progress,Resolved"`
	}
}

func (h *ComplaintHandler) HandleUpdateStatus(ctx context.Context, input *UpdateComplaintStatusRequest) (*ComplaintOutput, error) {
	var complaint models.Complaint
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&complaint, input.ID).Error; err != nil {
			return err
		}
		complaint.Status = input.Body.Status
		return tx.Model(&complaint).Update("status", complaint.Status).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, huma.Error404NotFound("Complaint not found")
	case err != nil:
		h.logger.Error("Failed to update complaint", zap.Uint("complaint_id", input.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to update complaint")
	}

	h.logger.Info("Complaint status changed",
		zap.Uint("complaint_id", complaint.ID),
		zap.String("status", string(complaint.Status)),
	)
	return &ComplaintOutput{Body: newComplaintResponse(complaint)}, nil
}
