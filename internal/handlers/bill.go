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

var errBillPaid = errors.New("bill already paid")

type BillHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewBillHandler(db *gorm.DB, logger *zap.Logger) *BillHandler {
	return &BillHandler{db: db, logger: logger}
}

type BillResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	AmountCents int64             `json:"amount_cents"`
	DueDate     string            `json:"due_date"`
	Status      models.BillStatus `json:"status"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	UserID      uint              `json:"user_id"`
	User        *ResidentSummary  `json:"user,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newBillResponse(b models.Bill) BillResponse {
	return BillResponse{
		ID:          b.ID,
		Title:       b.Title,
		AmountCents: b.AmountCents,
		DueDate:     b.DueDate,
		Status:      b.Status,
		PaidAt:      b.PaidAt,
		UserID:      b.UserID,
		User:        newResidentSummary(b.User),
		CreatedAt:   b.CreatedAt,
	}
}

type ListBillsResponse struct {
	Body []BillResponse
}

type BillOutput struct {
	Body BillResponse
}

type BillIDRequest struct {
	ID uint `path:"id"`
}

func (h *BillHandler) HandleMine(ctx context.Context, input *struct{}) (*ListBillsResponse, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var bills []models.Bill
	err = h.db.WithContext(ctx).
		Where("user_id = ?", p.UserID).
		Order("due_date ASC").
		Order("id ASC").
		Find(&bills).Error
	if err != nil {
		h.logger.Error("Failed to list bills", zap.Uint("user_id", p.UserID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to fetch bills")
	}
	return newListBillsResponse(bills), nil
}

// HandlePay settles one of the caller's own unpaid bills.
func (h *BillHandler) HandlePay(ctx context.Context, input *BillIDRequest) (*BillOutput, error) {
	p, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var bill models.Bill
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", p.UserID).First(&bill, input.ID).Error; err != nil {
			return err
		}
		if bill.Status == models.BillPaid {
			return errBillPaid
		}
		now := time.Now().UTC()
		res := tx.Model(&models.Bill{}).
			Where("id = ? AND status = ?", bill.ID, models.BillUnpaid).
			Updates(map[string]any{"status": models.BillPaid, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errBillPaid
		}
		bill.Status = models.BillPaid
		bill.PaidAt = &now
		return nil
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, huma.Error404NotFound("Bill not found")
	case errors.Is(err, errBillPaid):
		return nil, huma.Error409Conflict("Bill is already paid")
	case err != nil:
		h.logger.Error("Failed to pay bill", zap.Uint("bill_id", input.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to pay bill")
	}

	h.logger.Info("Bill paid",
		zap.Uint("bill_id", bill.ID),
		zap.Uint("user_id", p.UserID),
		zap.Int64("amount_cents", bill.AmountCents),
	)
	return &BillOutput{Body: newBillResponse(bill)}, nil
}

type ListAllBillsRequest struct {
	Status string `query:"status" enum:"unpaid,paid" doc:"Only bills in this state"`
}

func (h *BillHandler) HandleList(ctx context.Context, input *ListAllBillsRequest) (*ListBillsResponse, error) {
	q := h.db.WithContext(ctx).Preload("User")
	if input.Status != "" {
		q = q.Where("status = ?", input.Status)
	}

	var bills []models.Bill
	if err := q.Order("created_at DESC").Order("id DESC").Find(&bills).Error; err != nil {
		h.logger.Error("Failed to list bills", zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to fetch bills")
	}
	return newListBillsResponse(bills), nil
}

func newListBillsResponse(bills []models.Bill) *ListBillsResponse {
	body := make([]BillResponse, len(bills))
	for i, b := range bills {
		body[i] = newBillResponse(b)
	}
	return &ListBillsResponse{Body: body}
}

type CreateBillRequest struct {
	Body struct {
		UserID      uint   `json:"user_id" minimum:"1" doc:"Resident being billed"`
		Title       string `json:"title" minLength:"1" maxLength:"200"`
		AmountCents int64  `json:"amount_cents" minimum:"1"`
		DueDate     string `json:"due_date" format:"date" doc:"YYYY-MM-DD"`
	}
}

func (h *BillHandler) HandleCreate(ctx context.Context, input *CreateBillRequest) (*BillOutput, error) {
	var resident models.User
	err := h.db.WithContext(ctx).Where("role = ?", models.RoleResident).First(&resident, input.Body.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, huma.Error404NotFound("Resident not found")
	}
	if err != nil {
		h.logger.Error("Failed to load resident", zap.Uint("user_id", input.Body.UserID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to create bill")
	}

	bill := models.Bill{
		Title:       strings.TrimSpace(input.Body.Title),
		AmountCents: input.Body.AmountCents,
		DueDate:     input.Body.DueDate,
		Status:      models.BillUnpaid,
		UserID:      resident.ID,
	}
	if bill.Title == "" {
		return nil, huma.Error400BadRequest("Title is required")
	}
	if err := h.db.WithContext(ctx).Omit("User").Create(&bill).Error; err != nil {
		h.logger.Error("Failed to create bill", zap.Uint("user_id", resident.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to create bill")
	}
	bill.User = resident

	h.logger.Info("Bill issued",
		zap.Uint("bill_id", bill.ID),
		zap.Uint("user_id", resident.ID),
		zap.Int64("amount_cents", bill.AmountCents),
	)
	return &BillOutput{Body: newBillResponse(bill)}, nil
}

type UpdateBillRequest struct {
	ID   uint `path:"id"`
	Body struct {
		Title       *string            `json:"title,omitempty" minLength:"1" maxLength:"200"`
		AmountCents *int64             `json:"amount_cents,omitempty" minimum:"1"`
		DueDate     *string            `json:"due_date,omitempty" format:"date"`
		Status      *models.BillStatus `json:"status,omitempty" enum:"unpaid,paid"`
	}
}

func (h *BillHandler) HandleUpdate(ctx context.Context, input *UpdateBillRequest) (*BillOutput, error) {
	var bill models.Bill
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&bill, input.ID).Error; err != nil {
			return err
		}
		updates := map[string]any{}
		if input.Body.Title != nil {
			bill.Title = strings.TrimSpace(*input.Body.Title)
			updates["title"] = bill.Title
		}
		if input.Body.AmountCents != nil {
			bill.AmountCents = *input.Body.AmountCents
			updates["amount_cents"] = bill.AmountCents
		}
		if input.Body.DueDate != nil {
			bill.DueDate = *input.Body.DueDate
			updates["due_date"] = bill.DueDate
		}
		if s := input.Body.Status; s != nil && *s != bill.Status {
			bill.Status = *s
			updates["status"] = bill.Status
			if bill.Status == models.BillPaid {
				now := time.Now().UTC()
				bill.PaidAt = &now
			} else {
				bill.PaidAt = nil
			}
			updates["paid_at"] = bill.PaidAt
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&bill).Updates(updates).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, huma.Error404NotFound("Bill not found")
	case err != nil:
		h.logger.Error("Failed to update bill", zap.Uint("bill_id", input.ID), zap.Error(err))
		return nil, huma.Error500InternalServerError("Failed to update bill")
	}
	return &BillOutput{Body: newBillResponse(bill)}, nil
}

func (h *BillHandler) HandleDelete(ctx context.Context, input *BillIDRequest) (*struct{}, error) {
	res := h.db.WithContext(ctx).Unscoped().Delete(&models.Bill{}, input.ID)
	if res.Error != nil {
		h.logger.Error("Failed to delete bill", zap.Uint("bill_id", input.ID), zap.Error(res.Error))
		return nil, huma.Error500InternalServerError("Failed to delete bill")
	}
	if res.RowsAffected == 0 {
		return nil, huma.Error404NotFound("Bill not found")
	}
	return nil, nil
}
