package models

import (
	"gorm.io/gorm"
)

type Facility struct {
	gorm.Model
	Name        string `gorm:"not null;index"`
	Description string
	// Capacity is the number of reservations admitted per date and slot.
	Capacity int `gorm:"not null;check:capacity > 0"`
}
