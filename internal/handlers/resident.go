package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/auth"
	"github.com/gdg-garage/facility-api/internal/listing"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var residentSort = listing.Sort{
	Columns: map[string]string{
		"name":        "name",
		"email":       "email",
		"apartmentNo": "apartment_no",
		"createdAt":   "created_at",
	},
	Default: "name",
}

type ResidentHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewResidentHandler(db *gorm.DB, logger *zap.Logger) *ResidentHandler {
	return &ResidentHandler{db: db, logger: logger}
}

type ListResidentsRequest struct {
	ListQuery
	SortBy string `query:"sortBy" enum:"name,email,apartmentNo,createdAt" default:"name"`
}

type ListResidentsResponse struct {
	Body listing.Page[auth.UserResponse]
}

func (h *ResidentHandler) HandleList(ctx context.Context, input *ListResidentsRequest) (*ListResidentsResponse, error) {
	p, err := input.params(input.SortBy).Normalize(residentSort)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	base := h.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleResident).
		Scopes(listing.Search(p.Search, "name", "email", "apartment_no"))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		h.logger.Error("Failed to count residents", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to list residents")
	}

	var users []models.User
	if err := base.Session(&gorm.Session{}).Scopes(p.Paginate(residentSort)).Find(&users).Error; err != nil {
		h.logger.Error("Failed to list residents", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to list residents")
	}

	items := make([]auth.UserResponse, len(users))
	for i, u := range users {
		items[i] = auth.NewUserResponse(u)
	}
	return &ListResidentsResponse{Body: listing.NewPage(items, p, total)}, nil
}

type UpdateResidentRequest struct {
	ID   uint `path:"id"`
	Body struct {
		Name        *string      `json:"name,omitempty" minLength:"1" maxLength:"120"`
		Email       *string      `json:"email,omitempty" format:"email"`
		ApartmentNo *string      `json:"apartment_no,omitempty" maxLength:"32"`
		Role        *models.Role `json:"role,omitempty" doc:"Only RESIDENT is accepted"`
	}
}

type ResidentOutput struct {
	Body auth.UserResponse
}

// HandleUpdate edits a resident's profile. Roles cannot be changed here, so
// an admin cannot escalate a resident by accident.
func (h *ResidentHandler) HandleUpdate(ctx context.Context, input *UpdateResidentRequest) (*ResidentOutput, error) {
	if input.Body.Role != nil && *input.Body.Role != models.RoleResident {
		return nil, huma.Error400BadRequest("Cannot change role from RESIDENT via this endpoint")
	}

	var user models.User
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role = ?", models.RoleResident).First(&user, input.ID).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if input.Body.Name != nil {
			user.Name = strings.TrimSpace(*input.Body.Name)
			updates["name"] = user.Name
		}
		if input.Body.Email != nil {
			user.Email = strings.ToLower(strings.TrimSpace(*input.Body.Email))
			updates["email"] = user.Email
		}
		if input.Body.ApartmentNo != nil {
			user.ApartmentNo = strings.TrimSpace(*input.Body.ApartmentNo)
			updates["apartment_no"] = user.ApartmentNo
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&user).Updates(updates).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, huma.Error404NotFound("User not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, huma.Error409Conflict("Email is already in use")
	case err != nil:
		h.logger.Error("Failed to update resident", zap.Uint("user_id", input.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to update resident")
	}

	return &ResidentOutput{Body: auth.NewUserResponse(user)}, nil
}

type DeleteResidentRequest struct {
	ID uint `path:"id"`
}

// HandleDelete removes a resident together with their reservations, which
// frees the slots they held, and everything else they filed.
func (h *ResidentHandler) HandleDelete(ctx context.Context, input *DeleteResidentRequest) (*struct{}, error) {
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("role = ?", models.RoleResident).First(&user, input.ID).Error; err != nil {
			return err
		}
		if err := tx.Where("resident_id = ?", user.ID).Delete(&models.Reservation{}).Error; err != nil {
			return err
		}
		for _, owned := range []any{&models.Complaint{}, &models.Visitor{}, &models.Bill{}} {
			if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(owned).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error404NotFound("User not found")
	}
	if err != nil {
		h.logger.Error("Failed to delete resident", zap.Uint("user_id", input.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to delete resident")
	}

	h.logger.Info("Resident deleted", zap.Uint("user_id", input.ID))
	return nil, nil
}
