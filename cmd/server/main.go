package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/facility-api/internal/auth"
	"github.com/gdg-garage/facility-api/internal/booking"
	"github.com/gdg-garage/facility-api/internal/config"
	"github.com/gdg-garage/facility-api/internal/database"
	"github.com/gdg-garage/facility-api/internal/facility"
	"github.com/gdg-garage/facility-api/internal/handlers"
	"github.com/gdg-garage/facility-api/internal/logging"
	"github.com/gdg-garage/facility-api/internal/notifier"
	"github.com/gdg-garage/facility-api/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(cfg.Env)
	defer logger.Sync()

	// Connect to Database
	db := database.Connect(cfg)

	// Optional collaborators
	var announcementNotifier notifier.Notifier
	session, err := notifier.NewDiscordSession(cfg.DiscordBotToken)
	if err != nil {
		logger.Warn("Discord notifier not initialized", zap.Error(err))
	} else if session != nil && cfg.DiscordNotificationsChannelID != "" {
		announcementNotifier = notifier.NewDiscordNotifier(session, cfg.DiscordNotificationsChannelID)
	}

	rdb := ratelimit.Connect(cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	// Initialize Handlers
	bookings := booking.NewService(db, logger.Named("booking"))
	directory := facility.NewDirectory(db)

	authHandler := auth.NewAuthHandler(cfg, db, logger.Named("auth"))
	if cfg.AdminEmail != "" {
		if err := authHandler.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Fatal("Failed to provision administrator", zap.Error(err))
		}
	}

	h := handlers.Handlers{
		Auth:          authHandler,
		Facilities:    handlers.NewFacilityHandler(directory, bookings, logger.Named("facility")),
		Bookings:      handlers.NewBookingHandler(bookings, logger.Named("booking")),
		Residents:     handlers.NewResidentHandler(db, logger.Named("residents")),
		Announcements: handlers.NewAnnouncementHandler(db, announcementNotifier, logger.Named("announcements")),
		Complaints:    handlers.NewComplaintHandler(db, logger.Named("complaints")),
		Visitors:      handlers.NewVisitorHandler(db, logger.Named("visitors")),
		Bills:         handlers.NewBillHandler(db, logger.Named("bills")),
		Dashboard:     handlers.NewDashboardHandler(db, logger.Named("dashboard")),
		Limiter:       ratelimit.New(rdb, cfg.RateLimitCapacity, cfg.RateLimitRefillInterval, logger.Named("ratelimit")),
	}

	// Initialize Router
	r := chi.NewRouter()
	handlers.RegisterRoutes(r, cfg, logger, h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
