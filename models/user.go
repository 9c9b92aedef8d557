package models

import (
	"time"
)

// AdminUser is an administrator allowed to review applications.
type AdminUser struct {
	ID           uint       `gorm:"primaryKey;column:id" json:"id"`
	Username     string     `gorm:"column:username;size:150;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"column:email;size:255" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}
