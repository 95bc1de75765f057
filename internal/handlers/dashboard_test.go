package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gdg-garage/facility-api/internal/models"
)

func TestDashboard(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.user(t, "admin", models.RoleAdmin)
	mia, miaToken := s.user(t, "mia", models.RoleResident)
	ned, nedToken := s.user(t, "ned", models.RoleResident)

	rr := s.do(t, http.MethodGet, "/dashboard", miaToken, nil)
	expectStatus(t, rr, http.StatusForbidden)

	type dashboard struct {
		Stats              DashboardStats    `json:"stats"`
		ComplaintsByStatus []StatusCount     `json:"complaints_by_status"`
		RecentComplaints   []RecentComplaint `json:"recent_complaints"`
	}

	t.Run("Empty", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/dashboard", adminToken, nil)
		expectStatus(t, rr, http.StatusOK)
		got := decode[dashboard](t, rr)
		if got.Stats != (DashboardStats{TotalResidents: 2}) {
			t.Errorf("unexpected stats: %+v", got.Stats)
		}
		if got.ComplaintsByStatus == nil || got.RecentComplaints == nil {
			t.Errorf("expected empty arrays, got %s", rr.Body.String())
		}
	})

	var complaintIDs []uint
	for i, token := range []string{miaToken, miaToken, nedToken, nedToken, nedToken, miaToken, nedToken} {
		rr := s.do(t, http.MethodPost, "/complaints", token, map[string]any{
			"title": fmt.Sprintf("Issue %d", i), "description": "Needs attention",
		})
		expectStatus(t, rr, http.StatusCreated)
		complaintIDs = append(complaintIDs, decode[ComplaintResponse](t, rr).ID)
	}
	rr = s.do(t, http.MethodPut, fmt.Sprintf("/complaints/%d", complaintIDs[0]), adminToken, map[string]any{"status": "Resolved"})
	expectStatus(t, rr, http.StatusOK)
	rr = s.do(t, http.MethodPut, fmt.Sprintf("/complaints/%d", complaintIDs[6]), adminToken, map[string]any{"status": "In Progress"})
	expectStatus(t, rr, http.StatusOK)

	rr = s.do(t, http.MethodPost, "/visitors", nedToken, map[string]any{"name": "Courier"})
	expectStatus(t, rr, http.StatusCreated)

	for _, b := range []struct {
		user  uint
		cents int64
	}{{mia.ID, 1500}, {ned.ID, 2500}, {ned.ID, 4000}} {
		rr := s.do(t, http.MethodPost, "/bills", adminToken, map[string]any{
			"user_id": b.user, "title": "Water", "amount_cents": b.cents, "due_date": "2024-07-01",
		})
		expectStatus(t, rr, http.StatusCreated)
	}
	mine := decode[[]BillResponse](t, s.do(t, http.MethodGet, "/bills/mine", miaToken, nil))
	rr = s.do(t, http.MethodPost, fmt.Sprintf("/bills/%d/pay", mine[0].ID), miaToken, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = s.do(t, http.MethodGet, "/dashboard", adminToken, nil)
	expectStatus(t, rr, http.StatusOK)
	got := decode[dashboard](t, rr)

	want := DashboardStats{
		TotalResidents:    2,
		PendingComplaints: 5,
		PendingVisitors:   1,
		UnpaidBills:       2,
		TotalUnpaidCents:  6500,
	}
	if got.Stats != want {
		t.Errorf("expected stats %+v, got %+v", want, got.Stats)
	}

	byStatus := map[models.ComplaintStatus]int64{}
	for _, c := range got.ComplaintsByStatus {
		byStatus[c.Status] = c.Count
	}
	if byStatus[models.ComplaintPending] != 5 || byStatus[models.ComplaintInProgress] != 1 || byStatus[models.ComplaintResolved] != 1 {
		t.Errorf("unexpected complaints by status: %+v", got.ComplaintsByStatus)
	}

	if len(got.RecentComplaints) != 5 {
		t.Fatalf("expected 5 recent complaints, got %+v", got.RecentComplaints)
	}
	if got.RecentComplaints[0].ID != complaintIDs[5] || got.RecentComplaints[0].UserName != "mia" {
		t.Errorf("expected newest pending complaint first, got %+v", got.RecentComplaints[0])
	}
	for _, c := range got.RecentComplaints {
		if c.ID == complaintIDs[0] || c.ID == complaintIDs[6] {
			t.Errorf("expected only pending complaints, got %+v", c)
		}
	}
}
