package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/models"
	"github.com/gdg-garage/facility-api/internal/notifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AnnouncementHandler struct {
	db       *gorm.DB
	notifier notifier.Notifier
	logger   *zap.Logger
}

// NewAnnouncementHandler accepts a nil notifier when Discord is not configured.
func NewAnnouncementHandler(db *gorm.DB, notifier notifier.Notifier, logger *zap.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{db: db, notifier: notifier, logger: logger}
}

type AnnouncementCreator struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type AnnouncementResponse struct {
	ID        uint                `json:"id"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	Creator   AnnouncementCreator `json:"creator"`
	CreatedAt time.Time           `json:"created_at"`
}

func newAnnouncementResponse(a models.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		Creator:   AnnouncementCreator{ID: a.Creator.ID, Name: a.Creator.Name},
		CreatedAt: a.CreatedAt,
	}
}

type ListAnnouncementsResponse struct {
	Body []AnnouncementResponse
}

func (h *AnnouncementHandler) HandleList(ctx context.Context, input *struct{}) (*ListAnnouncementsResponse, error) {
	var announcements []models.Announcement
	err := h.db.WithContext(ctx).
		Preload("Creator").
		Order("created_at DESC").
		Order("id DESC").
		Find(&announcements).Error
	if err != nil {
		h.logger.Error("Failed to list announcements", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to fetch announcements")
	}

	body := make([]AnnouncementResponse, len(announcements))
	for i, a := range announcements {
		body[i] = newAnnouncementResponse(a)
	}
	return &ListAnnouncementsResponse{Body: body}, nil
}

type CreateAnnouncementRequest struct {
	Body struct {
		Title   string `json:"title" minLength:"1" maxLength:"200"`
		Content string `json:"content,omitempty" maxLength:"10000"`
	}
}

type AnnouncementOutput struct {
	Body AnnouncementResponse
}

func (h *AnnouncementHandler) HandleCreate(ctx context.Context, input *CreateAnnouncementRequest) (*AnnouncementOutput, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var creator models.User
	if err := h.db.WithContext(ctx).First(&creator, p.UserID).Error; err != nil {
		return nil, huma.Error404NotFound("User not found")
	}

	announcement := models.Announcement{
		Title:     strings.TrimSpace(input.Body.Title),
		Content:   input.Body.Content,
		CreatorID: creator.ID,
	}
	if err := h.db.WithContext(ctx).Omit("Creator").Create(&announcement).Error; err != nil {
		h.logger.Error("Failed to create announcement", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to create announcement")
	}
	announcement.Creator = creator

	// The announcement is published even if the Discord mirror fails
	if h.notifier != nil {
		if err := h.notifier.NotifyAnnouncement(creator, announcement); err != nil {
			h.logger.Warn("Failed to send announcement notification",
				zap.Uint("announcement_id", announcement.ID),
				zap.Error(err),
			)
		}
	}

	return &AnnouncementOutput{Body: newAnnouncementResponse(announcement)}, nil
}

type DeleteAnnouncementRequest struct {
	ID uint `path:"id"`
}

func (h *AnnouncementHandler) HandleDelete(ctx context.Context, input *DeleteAnnouncementRequest) (*struct{}, error) {
	res := h.db.WithContext(ctx).Unscoped().Delete(&models.Announcement{}, input.ID)
	if res.Error != nil {
		h.logger.Error("Failed to delete announcement", zap.Uint("announcement_id", input.ID), zap.Error(res.Error))
		return nil, huma.Error500InternalServerError("Failed to delete announcement")
	}
	if res.RowsAffected == 0 {
		return nil, huma.Error404NotFound("Announcement not found")
	}
	return nil, nil
}
