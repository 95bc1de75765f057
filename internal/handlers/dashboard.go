package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/facility-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recentComplaintsLimit = 5

type DashboardHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewDashboardHandler(db *gorm.DB, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{db: db, logger: logger}
}

type DashboardStats struct {
	TotalResidents    int64 `json:"total_residents"`
	PendingComplaints int64 `json:"pending_complaints"`
	PendingVisitors   int64 `json:"pending_visitors"`
	UnpaidBills       int64 `json:"unpaid_bills"`
	TotalUnpaidCents  int64 `json:"total_unpaid_cents"`
}

type StatusCount struct {
	Status models.ComplaintStatus `json:"status"`
	Count  int64                  `json:"count"`
}

type RecentComplaint struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

type DashboardResponse struct {
	Body struct {
		Stats              DashboardStats    `json:"stats"`
		ComplaintsByStatus []StatusCount     `json:"complaints_by_status"`
		RecentComplaints   []RecentComplaint `json:"recent_complaints"`
	}
}

// HandleDashboard summarises what currently needs an administrator's
// attention.
func (h *DashboardHandler) HandleDashboard(ctx context.Context, input *struct{}) (*DashboardResponse, error) {
	db := h.db.WithContext(ctx)
	res := &DashboardResponse{}
	stats := &res.Body.Stats

	counts := []struct {
		dst   *int64
		model any
		where string
		arg   any
	}{
		{&stats.TotalResidents, &models.User{}, "role = ?", models.RoleResident},
		{&stats.PendingComplaints, &models.Complaint{}, "status = ?", models.ComplaintPending},
		{&stats.PendingVisitors, &models.Visitor{}, "approved = ?", false},
		{&stats.UnpaidBills, &models.Bill{}, "status = ?", models.BillUnpaid},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.where, c.arg).Count(c.dst).Error; err != nil {
			return nil, h.fail(err)
		}
	}

	err := db.Model(&models.Bill{}).
		Where("status = ?", models.BillUnpaid).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&stats.TotalUnpaidCents).Error
	if err != nil {
		return nil, h.fail(err)
	}

	res.Body.ComplaintsByStatus = []StatusCount{}
	err = db.Model(&models.Complaint{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&res.Body.ComplaintsByStatus).Error
	if err != nil {
		return nil, h.fail(err)
	}

	var recent []models.Complaint
	err = db.Preload("User").
		Where("status = ?", models.ComplaintPending).
		Order("created_at DESC").
		Order("id DESC").
		Limit(recentComplaintsLimit).
		Find(&recent).Error
	if err != nil {
		return nil, h.fail(err)
	}
	res.Body.RecentComplaints = make([]RecentComplaint, len(recent))
	for i, c := range recent {
		res.Body.RecentComplaints[i] = RecentComplaint{
			ID:        c.ID,
			Title:     c.Title,
			UserName:  c.User.Name,
			CreatedAt: c.CreatedAt,
		}
	}

	return res, nil
}

func (h *DashboardHandler) fail(err error) error {
	h.logger.Error("Failed to build dashboard", zap.Error(err))
	return huma.Error500InternalServerError("Failed to load dashboard")
}
