package models

import (
	"time"
)

// Reservation is a resident's hold on one facility slot for one day. Rows are
// never updated in place, so there is no UpdatedAt/DeletedAt.
type Reservation struct {
	ID         uint   `gorm:"primaryKey"`
	Reference  string `gorm:"size:36;uniqueIndex;not null"`
	FacilityID uint   `gorm:"not null;uniqueIndex:idx_reservation_bucket_resident,priority:1"`
	// Date is the calendar day, YYYY-MM-DD.
	Date       string   `gorm:"size:10;not null;uniqueIndex:idx_reservation_bucket_resident,priority:2"`
	Slot       Slot     `gorm:"size:16;not null;uniqueIndex:idx_reservation_bucket_resident,priority:3"`
	ResidentID uint     `gorm:"not null;uniqueIndex:idx_reservation_bucket_resident,priority:4;index"`
	Facility   Facility `gorm:"constraint:OnDelete:RESTRICT"`
	Resident   User     `gorm:"foreignKey:ResidentID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time
}
