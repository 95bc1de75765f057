package models

import (
	"gorm.io/gorm"
)

type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "Pending"
	ComplaintInProgress ComplaintStatus = "In Progress"
	ComplaintResolved   ComplaintStatus = "Resolved"
)

type Complaint struct {
	gorm.Model
	Title       string          `gorm:"not null"`
	Description string          `gorm:"not null"`
	Status      ComplaintStatus `gorm:"size:16;not null;default:Pending;index"`
	UserID      uint            `gorm:"not null;index"`
	User        User            `gorm:"constraint:OnDelete:CASCADE"`
}
