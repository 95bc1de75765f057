package models

import (
	"gorm.io/gorm"
)

type Role string

const (
	RoleResident Role = "RESIDENT"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleResident || r == RoleAdmin
}

type User struct {
	gorm.Model
	Name         string
	Email        string  `gorm:"uniqueIndex;not null"`
	PasswordHash string  `json:"-"`
	Role         Role    `gorm:"size:16;not null;default:RESIDENT;index"`
	ApartmentNo  string  `gorm:"size:32"`
	DiscordID    *string `gorm:"uniqueIndex"`
	Avatar       string
}
