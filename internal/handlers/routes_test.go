package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gdg-garage/facility-api/internal/auth"
	"github.com/gdg-garage/facility-api/internal/booking"
	"github.com/gdg-garage/facility-api/internal/config"
	"github.com/gdg-garage/facility-api/internal/database"
	"github.com/gdg-garage/facility-api/internal/facility"
	"github.com/gdg-garage/facility-api/internal/models"
	"github.com/gdg-garage/facility-api/internal/notifier"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Announcement
	err  error
}

func (f *fakeNotifier) NotifyAnnouncement(_ models.User, a models.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, a)
	return f.err
}

type testServer struct {
	router *chi.Mux
	db     *gorm.DB
	auth   *auth.AuthHandler
}

func newTestServer(t *testing.T, n notifier.Notifier) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:            "test",
		DatabaseDriver: config.DriverSQLite,
		DatabasePath:   filepath.Join(t.TempDir(), "api.db"),
		JWTSecret:      "test-secret",
		TokenDuration:  24 * time.Hour,
		BcryptCost:     bcrypt.MinCost,
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	logger := zap.NewNop()
	bookings := booking.NewService(db, logger)
	authHandler := auth.NewAuthHandler(cfg, db, logger)

	r := chi.NewRouter()
	RegisterRoutes(r, cfg, logger, Handlers{
		Auth:          authHandler,
		Facilities:    NewFacilityHandler(facility.NewDirectory(db), bookings, logger),
		Bookings:      NewBookingHandler(bookings, logger),
		Residents:     NewResidentHandler(db, logger),
		Announcements: NewAnnouncementHandler(db, n, logger),
		Complaints:    NewComplaintHandler(db, logger),
		Visitors:      NewVisitorHandler(db, logger),
		Bills:         NewBillHandler(db, logger),
		Dashboard:     NewDashboardHandler(db, logger),
	})

	return &testServer{router: r, db: db, auth: authHandler}
}

func (s *testServer) user(t *testing.T, name string, role models.Role) (models.User, string) {
	t.Helper()
	u := models.User{Name: name, Email: name + "@example.com", Role: role}
	if err := s.db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	token, err := s.auth.GenerateToken(u.ID, u.Role)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return u, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func (s *testServer) facility(t *testing.T, adminToken, name string, capacity int) FacilityResponse {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/facilities", adminToken, map[string]any{"name": name, "capacity": capacity})
	expectStatus(t, rr, http.StatusCreated)
	return decode[FacilityResponse](t, rr)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "OK" {
		t.Errorf("expected OK, got %q", rr.Body.String())
	}

	rr = s.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rr, http.StatusOK)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.user(t, "admin", models.RoleAdmin)
	alice, aliceToken := s.user(t, "alice", models.RoleResident)
	_, bobToken := s.user(t, "bob", models.RoleResident)

	gym := s.facility(t, adminToken, "Gym", 1)

	t.Run("Created", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", aliceToken, map[string]any{
			"facility_id": gym.ID, "date": "2024-06-01", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusCreated)
		got := decode[ReservationResponse](t, rr)
		if got.ResidentID != alice.ID || got.FacilityName != "Gym" || got.SlotLabel != "09:00-10:00" || got.Reference == "" {
			t.Errorf("unexpected reservation: %+v", got)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", aliceToken, map[string]any{
			"facility_id": gym.ID, "date": "2024-06-01T10:30:00Z", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusConflict)
	})

	t.Run("Full", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", bobToken, map[string]any{
			"facility_id": gym.ID, "date": "2024-06-01", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusConflict)
	})

	t.Run("UnknownFacility", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", bobToken, map[string]any{
			"facility_id": 999, "date": "2024-06-01", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("BadDate", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", bobToken, map[string]any{
			"facility_id": gym.ID, "date": "someday", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("UnknownSlotRejectedBySchema", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", bobToken, map[string]any{
			"facility_id": gym.ID, "date": "2024-06-01", "slot": "S_12_13",
		})
		expectStatus(t, rr, http.StatusUnprocessableEntity)
	})

	t.Run("AdminCannotBook", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", adminToken, map[string]any{
			"facility_id": gym.ID, "date": "2024-06-02", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusForbidden)
	})

	t.Run("Anonymous", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", "", map[string]any{
			"facility_id": gym.ID, "date": "2024-06-02", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("Mine", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/bookings/mine", aliceToken, nil)
		expectStatus(t, rr, http.StatusOK)
		mine := decode[[]ReservationResponse](t, rr)
		if len(mine) != 1 || mine[0].FacilityID != gym.ID || mine[0].Date != "2024-06-01" {
			t.Errorf("unexpected reservations: %+v", mine)
		}

		rr = s.do(t, http.MethodGet, "/bookings/mine", bobToken, nil)
		expectStatus(t, rr, http.StatusOK)
		if rr.Body.String() == "null" {
			t.Errorf("expected an empty array for a resident without bookings")
		}
		if theirs := decode[[]ReservationResponse](t, rr); len(theirs) != 0 {
			t.Errorf("expected no reservations for bob, got %+v", theirs)
		}
	})

	t.Run("Availability", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, fmt.Sprintf("/facilities/%d/availability?date=2024-06-01", gym.ID), bobToken, nil)
		expectStatus(t, rr, http.StatusOK)
		got := decode[struct {
			Date  string                     `json:"date"`
			Slots []booking.SlotAvailability `json:"slots"`
		}](t, rr)
		if got.Date != "2024-06-01" || len(got.Slots) != 5 {
			t.Fatalf("unexpected availability: %+v", got)
		}
		if got.Slots[0].Remaining != 0 || !got.Slots[0].Full || got.Slots[0].BookedByMe {
			t.Errorf("unexpected first slot: %+v", got.Slots[0])
		}

		rr = s.do(t, http.MethodGet, fmt.Sprintf("/facilities/%d/availability?date=2024-06-01T08:30:00Z", gym.ID), bobToken, nil)
		expectStatus(t, rr, http.StatusOK)
		if got := decode[struct {
			Date string `json:"date"`
		}](t, rr); got.Date != "2024-06-01" {
			t.Errorf("expected timestamp to be reported as its day, got %q", got.Date)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		mine := decode[[]ReservationResponse](t, s.do(t, http.MethodGet, "/bookings/mine", aliceToken, nil))
		id := mine[0].ID

		rr := s.do(t, http.MethodDelete, fmt.Sprintf("/bookings/%d", id), bobToken, nil)
		expectStatus(t, rr, http.StatusNotFound)

		rr = s.do(t, http.MethodDelete, fmt.Sprintf("/bookings/%d", id), aliceToken, nil)
		expectStatus(t, rr, http.StatusNoContent)

		rr = s.do(t, http.MethodPost, "/bookings", bobToken, map[string]any{
			"facility_id": gym.ID, "date": "2024-06-01", "slot": "S_09_10",
		})
		expectStatus(t, rr, http.StatusCreated)
	})
}

func TestFacilityAdministration(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.user(t, "admin", models.RoleAdmin)
	_, residentToken := s.user(t, "carol", models.RoleResident)

	rr := s.do(t, http.MethodPost, "/facilities", residentToken, map[string]any{"name": "Sauna", "capacity": 2})
	expectStatus(t, rr, http.StatusForbidden)

	pool := s.facility(t, adminToken, "Pool", 20)
	s.facility(t, adminToken, "Gym", 1)
	s.facility(t, adminToken, "Tennis Court", 4)

	t.Run("List", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/facilities?sortBy=capacity&sortOrder=desc&limit=2", residentToken, nil)
		expectStatus(t, rr, http.StatusOK)
		page := decode[struct {
			Items       []FacilityResponse `json:"items"`
			CurrentPage int                `json:"current_page"`
			TotalPages  int                `json:"total_pages"`
			Total       int64              `json:"total"`
		}](t, rr)
		if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 || page.Items[0].Name != "Pool" {
			t.Errorf("unexpected page: %+v", page)
		}
	})

	t.Run("Search", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/facilities?search=COURT", residentToken, nil)
		expectStatus(t, rr, http.StatusOK)
		page := decode[struct {
			Items []FacilityResponse `json:"items"`
		}](t, rr)
		if len(page.Items) != 1 || page.Items[0].Name != "Tennis Court" {
			t.Errorf("unexpected search result: %+v", page.Items)
		}
	})

	t.Run("InvalidSortKey", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/facilities?sortBy=description", residentToken, nil)
		expectStatus(t, rr, http.StatusUnprocessableEntity)
	})

	t.Run("GetAndUpdate", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, fmt.Sprintf("/facilities/%d", pool.ID), residentToken, nil)
		expectStatus(t, rr, http.StatusOK)

		rr = s.do(t, http.MethodPut, fmt.Sprintf("/facilities/%d", pool.ID), adminToken, map[string]any{"name": "Pool", "description": "Indoor", "capacity": 15})
		expectStatus(t, rr, http.StatusOK)
		if got := decode[FacilityResponse](t, rr); got.Capacity != 15 || got.Description != "Indoor" {
			t.Errorf("unexpected update: %+v", got)
		}

		rr = s.do(t, http.MethodGet, "/facilities/999", residentToken, nil)
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("DeleteInUse", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/bookings", residentToken, map[string]any{
			"facility_id": pool.ID, "date": "2024-06-01", "slot": "S_11_12",
		})
		expectStatus(t, rr, http.StatusCreated)

		rr = s.do(t, http.MethodDelete, fmt.Sprintf("/facilities/%d", pool.ID), adminToken, nil)
		expectStatus(t, rr, http.StatusConflict)
	})
}

func TestResidentAdministration(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.user(t, "admin", models.RoleAdmin)
	dave, daveToken := s.user(t, "dave", models.RoleResident)
	s.user(t, "erin", models.RoleResident)

	gym := s.facility(t, adminToken, "Gym", 1)
	rr := s.do(t, http.MethodPost, "/bookings", daveToken, map[string]any{
		"facility_id": gym.ID, "date": "2024-06-01", "slot": "S_09_10",
	})
	expectStatus(t, rr, http.StatusCreated)
	rr = s.do(t, http.MethodPost, "/complaints", daveToken, map[string]any{"title": "Noise", "description": "Loud music at night"})
	expectStatus(t, rr, http.StatusCreated)

	t.Run("ListExcludesAdmins", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/admin/residents", adminToken, nil)
		expectStatus(t, rr, http.StatusOK)
		page := decode[struct {
			Items []auth.UserResponse `json:"items"`
			Total int64               `json:"total"`
		}](t, rr)
		if page.Total != 2 || len(page.Items) != 2 || page.Items[0].Name != "dave" {
			t.Errorf("unexpected residents page: %+v", page)
		}
	})

	t.Run("ResidentForbidden", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/admin/residents", daveToken, nil)
		expectStatus(t, rr, http.StatusForbidden)
	})

	t.Run("CannotChangeRole", func(t *testing.T) {
		rr := s.do(t, http.MethodPut, fmt.Sprintf("/admin/residents/%d", dave.ID), adminToken, map[string]any{"role": "ADMIN"})
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("Update", func(t *testing.T) {
		rr := s.do(t, http.MethodPut, fmt.Sprintf("/admin/residents/%d", dave.ID), adminToken, map[string]any{"apartment_no": "7C"})
		expectStatus(t, rr, http.StatusOK)
		if got := decode[auth.UserResponse](t, rr); got.ApartmentNo != "7C" || got.Name != "dave" {
			t.Errorf("unexpected update: %+v", got)
		}

		rr = s.do(t, http.MethodPut, fmt.Sprintf("/admin/residents/%d", dave.ID), adminToken, map[string]any{"email": "erin@example.com"})
		expectStatus(t, rr, http.StatusConflict)
	})

	t.Run("DeleteFreesReservations", func(t *testing.T) {
		rr := s.do(t, http.MethodDelete, fmt.Sprintf("/admin/residents/%d", dave.ID), adminToken, nil)
		expectStatus(t, rr, http.StatusNoContent)

		var n int64
		s.db.Model(&models.Reservation{}).Where("resident_id = ?", dave.ID).Count(&n)
		if n != 0 {
			t.Errorf("expected reservations to be removed, %d left", n)
		}
		s.db.Unscoped().Model(&models.Complaint{}).Where("user_id = ?", dave.ID).Count(&n)
		if n != 0 {
			t.Errorf("expected complaints to be removed, %d left", n)
		}

		// The old token no longer authenticates
		rr = s.do(t, http.MethodGet, "/me", daveToken, nil)
		expectStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestAnnouncements(t *testing.T) {
	n := &fakeNotifier{}
	s := newTestServer(t, n)
	_, adminToken := s.user(t, "admin", models.RoleAdmin)
	_, residentToken := s.user(t, "frank", models.RoleResident)

	rr := s.do(t, http.MethodPost, "/announcements", residentToken, map[string]any{"title": "Hi"})
	expectStatus(t, rr, http.StatusForbidden)

	rr = s.do(t, http.MethodPost, "/announcements", adminToken, map[string]any{"title": "Pool closed", "content": "Maintenance on Monday"})
	expectStatus(t, rr, http.StatusCreated)
	created := decode[AnnouncementResponse](t, rr)
	if created.Creator.Name != "admin" {
		t.Errorf("expected creator to be set, got %+v", created.Creator)
	}
	if len(n.sent) != 1 || n.sent[0].Title != "Pool closed" {
		t.Errorf("expected one notification, got %+v", n.sent)
	}

	// A failing notifier does not fail the request
	n.err = errors.New("discord unavailable")
	rr = s.do(t, http.MethodPost, "/announcements", adminToken, map[string]any{"title": "Gym reopened"})
	expectStatus(t, rr, http.StatusCreated)

	rr = s.do(t, http.MethodGet, "/announcements", residentToken, nil)
	expectStatus(t, rr, http.StatusOK)
	list := decode[[]AnnouncementResponse](t, rr)
	if len(list) != 2 || list[0].Title != "Gym reopened" {
		t.Errorf("expected newest first, got %+v", list)
	}

	rr = s.do(t, http.MethodDelete, fmt.Sprintf("/announcements/%d", created.ID), adminToken, nil)
	expectStatus(t, rr, http.StatusNoContent)
	rr = s.do(t, http.MethodDelete, fmt.Sprintf("/announcements/%d", created.ID), adminToken, nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Grace", "email": "grace@example.com", "password": "hunter2hunter2", "apartment_no": "9",
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = s.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "grace@example.com", "password": "hunter2hunter2"})
	expectStatus(t, rr, http.StatusOK)
	login := decode[struct {
		Token string `json:"token"`
	}](t, rr)
	if login.Token == "" {
		t.Fatal("expected a token")
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Error("expected login to set the session cookie")
	}

	rr = s.do(t, http.MethodPut, "/me", login.Token, map[string]any{"apartment_no": "10"})
	expectStatus(t, rr, http.StatusOK)

	rr = s.do(t, http.MethodGet, "/me", login.Token, nil)
	expectStatus(t, rr, http.StatusOK)
	me := decode[auth.UserResponse](t, rr)
	if me.Email != "grace@example.com" || me.Role != models.RoleResident || me.ApartmentNo != "10" {
		t.Errorf("unexpected profile: %+v", me)
	}
}
