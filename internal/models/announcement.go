package models

import (
	"gorm.io/gorm"
)

type Announcement struct {
	gorm.Model
	Title     string `gorm:"not null"`
	Content   string
	CreatorID uint `gorm:"not null;index"`
	Creator   User `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
}
