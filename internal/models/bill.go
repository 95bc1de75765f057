package models

import (
	"time"

	"gorm.io/gorm"
)

type BillStatus string

const (
	BillUnpaid BillStatus = "unpaid"
	BillPaid   BillStatus = "paid"
)

// Bill is a charge issued to a resident. Amounts are kept in cents.
type Bill struct {
	gorm.Model
	Title       string `gorm:"not null"`
	AmountCents int64  `gorm:"not null"`
	// DueDate is the calendar day, YYYY-MM-DD.
	DueDate string     `gorm:"size:10;not null;index"`
	Status  BillStatus `gorm:"size:8;not null;default:unpaid;index"`
	PaidAt  *time.Time
	UserID  uint `gorm:"not null;index"`
	User    User `gorm:"constraint:OnDelete:CASCADE"`
}
