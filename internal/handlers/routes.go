package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/facility-api/internal/auth"
	"github.com/gdg-garage/facility-api/internal/config"
	"github.com/gdg-garage/facility-api/internal/logging"
	"github.com/gdg-garage/facility-api/internal/metrics"
	"github.com/gdg-garage/facility-api/internal/models"
	"github.com/gdg-garage/facility-api/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth          *auth.AuthHandler
	Facilities    *FacilityHandler
	Bookings      *BookingHandler
	Residents     *ResidentHandler
	Announcements *AnnouncementHandler
	Complaints    *ComplaintHandler
	Visitors      *VisitorHandler
	Bills         *BillHandler
	Dashboard     *DashboardHandler
	// Limiter may be nil, which disables rate limiting.
	Limiter *ratelimit.Limiter
}

func RegisterRoutes(r *chi.Mux, cfg *config.Config, logger *zap.Logger, h Handlers) huma.API {
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Warn("Ignoring trusted proxies", zap.Error(err))
	}

	r.Use(middleware.RequestID)
	r.Use(ratelimit.PeerAddr(proxies))
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)
	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Initialize Huma API
	humaConfig := huma.DefaultConfig("Facility Management API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.TokenCookie,
		},
	}
	api := humachi.New(r, humaConfig)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	// Auth routes
	limited := h.Limiter.Protect(api)
	huma.Post(api, "/auth/register", h.Auth.HandleRegister, limited, created)
	huma.Post(api, "/auth/login", h.Auth.HandleLogin, limited)
	if h.Auth.DiscordLoginEnabled() {
		r.Get("/auth/discord/login", h.Auth.HandleDiscordLogin)
		r.Get("/auth/discord/callback", h.Auth.HandleDiscordCallback)
	}

	anyUser := h.Auth.Protect(api)
	admin := h.Auth.Protect(api, models.RoleAdmin)
	resident := h.Auth.Protect(api, models.RoleResident)

	huma.Get(api, "/me", h.Auth.HandleMe, anyUser)
	huma.Put(api, "/me", h.Auth.HandleUpdateMe, anyUser)

	// Facilities
	huma.Get(api, "/facilities", h.Facilities.HandleList, anyUser)
	huma.Get(api, "/facilities/{id}", h.Facilities.HandleGet, anyUser)
	huma.Get(api, "/facilities/{id}/availability", h.Facilities.HandleAvailability, anyUser)
	huma.Post(api, "/facilities", h.Facilities.HandleCreate, admin, created)
	huma.Put(api, "/facilities/{id}", h.Facilities.HandleUpdate, admin)
	huma.Delete(api, "/facilities/{id}", h.Facilities.HandleDelete, admin)

	// Bookings
	huma.Post(api, "/bookings", h.Bookings.HandleCreate, resident, created)
	huma.Get(api, "/bookings/mine", h.Bookings.HandleMine, anyUser)
	huma.Delete(api, "/bookings/{id}", h.Bookings.HandleCancel, anyUser)

	// Residents
	huma.Get(api, "/admin/residents", h.Residents.HandleList, admin)
	huma.Put(api, "/admin/residents/{id}", h.Residents.HandleUpdate, admin)
	huma.Delete(api, "/admin/residents/{id}", h.Residents.HandleDelete, admin)

	// Announcements
	huma.Get(api, "/announcements", h.Announcements.HandleList, anyUser)
	huma.Post(api, "/announcements", h.Announcements.HandleCreate, admin, created)
	huma.Delete(api, "/announcements/{id}", h.Announcements.HandleDelete, admin)

	// Complaints
	huma.Post(api, "/complaints", h.Complaints.HandleCreate, anyUser, created)
	huma.Get(api, "/complaints/mine", h.Complaints.HandleMine, anyUser)
	huma.Get(api, "/complaints", h.Complaints.HandleList, admin)
	huma.Put(api, "/complaints/{id}", h.Complaints.HandleUpdateStatus, admin)

	// Visitors
	huma.Post(api, "/visitors", h.Visitors.HandleCreate, anyUser, created)
	huma.Get(api, "/visitors/mine", h.Visitors.HandleMine, anyUser)
	huma.Get(api, "/visitors", h.Visitors.HandleList, admin)
	huma.Put(api, "/visitors/{id}/approve", h.Visitors.HandleApprove, admin)

	// Bills
	huma.Get(api, "/bills/mine", h.Bills.HandleMine, anyUser)
	huma.Post(api, "/bills/{id}/pay", h.Bills.HandlePay, resident)
	huma.Get(api, "/bills", h.Bills.HandleList, admin)
	huma.Post(api, "/bills", h.Bills.HandleCreate, admin, created)
	huma.Put(api, "/bills/{id}", h.Bills.HandleUpdate, admin)
	huma.Delete(api, "/bills/{id}", h.Bills.HandleDelete, admin)

	huma.Get(api, "/dashboard", h.Dashboard.HandleDashboard, admin)

	return api
}

func created(o *huma.Operation) {
	o.DefaultStatus = http.StatusCreated
}
