package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdg-garage/facility-api/internal/metrics"
	"github.com/gdg-garage/facility-api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service admits reservations against two invariants: a resident holds a
// (facility, date, slot) bucket at most once, and a bucket never holds more
// reservations than the facility's capacity.
//
// The checks and the insert share one transaction. SQLite connections begin
// it IMMEDIATE, so admissions are serialized by the database write lock; on
// Postgres the facility row is locked FOR UPDATE, which serializes admissions
// per facility. The unique index on the bucket plus resident catches a
// duplicate that slips past the first check under READ COMMITTED.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

type CreateRequest struct {
	FacilityID uint
	Date       string
	Slot       string
}

// CreateReservation books a slot for residentID, which must come from the
// authenticated session.
func (s *Service) CreateReservation(ctx context.Context, residentID uint, req CreateRequest) (*models.Reservation, error) {
	r, err := s.createReservation(ctx, residentID, req)
	metrics.ObserveReservation(Outcome(err))

	switch {
	case err == nil:
		s.logger.Info("Reservation created",
			zap.Uint("reservation_id", r.ID),
			zap.Uint("resident_id", residentID),
			zap.Uint("facility_id", r.FacilityID),
			zap.String("date", r.Date),
			zap.String("slot", string(r.Slot)),
		)
	case errors.Is(err, ErrStorage):
		s.logger.Error("Reservation failed",
			zap.Uint("resident_id", residentID),
			zap.Uint("facility_id", req.FacilityID),
			zap.Error(err),
		)
	default:
		s.logger.Info("Reservation rejected",
			zap.Uint("resident_id", residentID),
			zap.Uint("facility_id", req.FacilityID),
			zap.String("date", req.Date),
			zap.String("slot", req.Slot),
			zap.String("reason", Outcome(err)),
		)
	}
	return r, err
}

func (s *Service) createReservation(ctx context.Context, residentID uint, req CreateRequest) (*models.Reservation, error) {
	if residentID == 0 {
		return nil, fmt.Errorf("%w: resident is required", ErrInvalidInput)
	}
	if req.FacilityID == 0 {
		return nil, fmt.Errorf("%w: facility_id is required", ErrInvalidInput)
	}
	slot, err := models.ParseSlot(req.Slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	day, err := NormalizeDate(req.Date)
	if err != nil {
		return nil, err
	}

	r := models.Reservation{
		Reference:  uuid.NewString(),
		FacilityID: req.FacilityID,
		Date:       day,
		Slot:       slot,
		ResidentID: residentID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Duplicate guard
		var mine int64
		err := tx.Model(&models.Reservation{}).
			Where("facility_id = ? AND date = ? AND slot = ? AND resident_id = ?", r.FacilityID, r.Date, r.Slot, r.ResidentID).
			Count(&mine).Error
		if err != nil {
			return storageErr("check duplicate", err)
		}
		if mine > 0 {
			return ErrDuplicateReservation
		}

		// 2. Facility, locked until commit where row locks exist
		var f models.Facility
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&f, r.FacilityID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFacilityNotFound
		}
		if err != nil {
			return storageErr("load facility", err)
		}

		// 3. Capacity
		var taken int64
		err = tx.Model(&models.Reservation{}).
			Where("facility_id = ? AND date = ? AND slot = ?", r.FacilityID, r.Date, r.Slot).
			Count(&taken).Error
		if err != nil {
			return storageErr("count reservations", err)
		}
		if taken >= int64(f.Capacity) {
			return ErrSlotFull
		}

		// 4. Insert
		if err := tx.Omit(clause.Associations).Create(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReservation
			}
			return storageErr("insert reservation", err)
		}
		r.Facility = f
		return nil
	})
	if err != nil {
		if isRejection(err) || errors.Is(err, ErrStorage) {
			return nil, err
		}
		// begin/commit failures
		return nil, storageErr("reservation transaction", err)
	}
	return &r, nil
}

// ListReservationsForResident returns the resident's reservations with their
// facility loaded, ordered by date, then slot.
func (s *Service) ListReservationsForResident(ctx context.Context, residentID uint) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := s.db.WithContext(ctx).
		Preload("Facility").
		Where("resident_id = ?", residentID).
		Order("date ASC").
		Order("slot ASC").
		Order("id ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, storageErr("list reservations", err)
	}
	return reservations, nil
}

// CancelReservation deletes one of the resident's own reservations, freeing
// its place in the bucket. Reservations of other residents are reported as
// not found.
func (s *Service) CancelReservation(ctx context.Context, residentID, reservationID uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND resident_id = ?", reservationID, residentID).
		Delete(&models.Reservation{})
	if res.Error != nil {
		return storageErr("delete reservation", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationNotFound
	}

	s.logger.Info("Reservation cancelled",
		zap.Uint("reservation_id", reservationID),
		zap.Uint("resident_id", residentID),
	)
	metrics.ObserveReservation("cancelled")
	return nil
}

type SlotAvailability struct {
	Slot       models.Slot `json:"slot"`
	Label      string      `json:"label"`
	Capacity   int         `json:"capacity"`
	Booked     int         `json:"booked"`
	Remaining  int         `json:"remaining"`
	Full       bool        `json:"full"`
	BookedByMe bool        `json:"booked_by_me"`
}

// DayAvailability is the occupancy of one facility on one calendar day.
type DayAvailability struct {
	FacilityID uint
	Date       string
	Slots      []SlotAvailability
}

// Availability reports occupancy of every slot of a facility on one day, as
// seen by residentID. The returned Date is the normalized day.
func (s *Service) Availability(ctx context.Context, residentID, facilityID uint, date string) (*DayAvailability, error) {
	day, err := NormalizeDate(date)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)

	var f models.Facility
	err = db.First(&f, facilityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFacilityNotFound
	}
	if err != nil {
		return nil, storageErr("load facility", err)
	}

	var rows []struct {
		Slot   models.Slot
		Booked int64
		Mine   int64
	}
	err = db.Model(&models.Reservation{}).
		Select("slot, COUNT(*) AS booked, COUNT(CASE WHEN resident_id = ? THEN 1 END) AS mine", residentID).
		Where("facility_id = ? AND date = ?", facilityID, day).
		Group("slot").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("count slot occupancy", err)
	}

	booked := make(map[models.Slot]int64, len(rows))
	mine := make(map[models.Slot]bool, len(rows))
	for _, row := range rows {
		booked[row.Slot] = row.Booked
		mine[row.Slot] = row.Mine > 0
	}

	out := make([]SlotAvailability, 0, len(models.AllSlots()))
	for _, slot := range models.AllSlots() {
		n := int(booked[slot])
		// capacity may have been lowered below what is already admitted
		remaining := max(f.Capacity-n, 0)
		out = append(out, SlotAvailability{
			Slot:       slot,
			Label:      slot.Label(),
			Capacity:   f.Capacity,
			Booked:     n,
			Remaining:  remaining,
			Full:       remaining == 0,
			BookedByMe: mine[slot],
		})
	}
	return &DayAvailability{FacilityID: f.ID, Date: day, Slots: out}, nil
}

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrFacilityNotFound) ||
		errors.Is(err, ErrDuplicateReservation) ||
		errors.Is(err, ErrSlotFull)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
