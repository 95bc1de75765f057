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

type VisitorHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewVisitorHandler(db *gorm.DB, logger *zap.Logger) *VisitorHandler {
	return &VisitorHandler{db: db, logger: logger}
}

type VisitorResponse struct {
	ID         uint             `json:"id"`
	Name       string           `json:"name"`
	Reason     string           `json:"reason"`
	Approved   bool             `json:"approved"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
	UserID     uint             `json:"user_id"`
	User       *ResidentSummary `json:"user,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

func newVisitorResponse(v models.Visitor) VisitorResponse {
	return VisitorResponse{
		ID:         v.ID,
		Name:       v.Name,
		Reason:     v.Reason,
		Approved:   v.Approved,
		ApprovedAt: v.ApprovedAt,
		UserID:     v.UserID,
		User:       newResidentSummary(v.User),
		CreatedAt:  v.CreatedAt,
	}
}

type ListVisitorsResponse struct {
	Body []VisitorResponse
}

type VisitorOutput struct {
	Body VisitorResponse
}

type CreateVisitorRequest struct {
	Body struct {
		Name   string `json:"name" minLength:"1" maxLength:"120"`
		Reason string `json:"reason,omitempty" maxLength:"500"`
	}
}

func (h *VisitorHandler) HandleCreate(ctx context.Context, input *CreateVisitorRequest) (*VisitorOutput, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Body.Name)
	if name == "" {
		return nil, huma.Error400BadRequest("Visitor name is required")
	}

	visitor := models.Visitor{
		Name:   name,
		Reason: strings.TrimSpace(input.Body.Reason),
		UserID: p.UserID,
	}
	if err := h.db.WithContext(ctx).Omit("User").Create(&visitor).Error; err != nil {
		h.logger.Error("Failed to register visitor", zap.Uint("user_id", p.UserID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to register visitor")
	}
	return &VisitorOutput{Body: newVisitorResponse(visitor)}, nil
}

func (h *VisitorHandler) HandleMine(ctx context.Context, input *struct{}) (*ListVisitorsResponse, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return h.list(ctx, h.db.WithContext(ctx).Where("user_id = ?", p.UserID))
}

type ListAllVisitorsRequest struct {
	Pending bool `query:"pending" doc:"Only visitors awaiting approval"`
}

func (h *VisitorHandler) HandleList(ctx context.Context, input *ListAllVisitorsRequest) (*ListVisitorsResponse, error) {
	q := h.db.WithContext(ctx).Preload("User")
	if input.Pending {
		q = q.Where("approved = ?", false)
	}
	return h.list(ctx, q)
}

func (h *VisitorHandler) list(ctx context.Context, q *gorm.DB) (*ListVisitorsResponse, error) {
	var visitors []models.Visitor
	if err := q.Order("created_at DESC").Order("id DESC").Find(&visitors).Error; err != nil {
		h.logger.Error("Failed to list visitors", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to fetch visitors")
	}

	body := make([]VisitorResponse, len(visitors))
	for i, v := range visitors {
		body[i] = newVisitorResponse(v)
	}
	return &ListVisitorsResponse{Body: body}, nil
}

type VisitorIDRequest struct {
	ID uint `path:"id"`
}

// HandleApprove marks a visitor as approved. Approving twice keeps the first
// approval time.
func (h *VisitorHandler) HandleApprove(ctx context.Context, input *VisitorIDRequest) (*VisitorOutput, error) {
	var visitor models.Visitor
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&visitor, input.ID).Error; err != nil {
			return err
		}
		if visitor.Approved {
			return nil
		}
		now := time.Now().UTC()
		visitor.Approved = true
		visitor.ApprovedAt = &now
		return tx.Model(&visitor).Updates(map[string]any{"approved": true, "approved_at": now}).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, huma.Error404NotFound("Visitor not found")
	case err != nil:
		h.logger.Error("Failed to approve visitor", zap.Uint("visitor_id", input.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to approve visitor")
	}

	h.logger.Info("Visitor approved", zap.Uint("visitor_id", visitor.ID), zap.Uint("user_id", visitor.UserID))
	return &VisitorOutput{Body: newVisitorResponse(visitor)}, nil
}
