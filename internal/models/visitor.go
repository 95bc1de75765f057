package models

import (
	"time"

	"gorm.io/gorm"
)

// Visitor is a guest a resident announces in advance. An admin approves the
// visit at the gate.
type Visitor struct {
	gorm.Model
	Name       string `gorm:"not null"`
	Reason     string
	Approved   bool `gorm:"not null;default:false;index"`
	ApprovedAt *time.Time
	UserID     uint `gorm:"not null;index"`
	User       User `gorm:"constraint:OnDelete:CASCADE"`
}
