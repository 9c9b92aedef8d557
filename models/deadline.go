package models

import (
	"math"
	"time"
)

// DeadlineWindow is a named period during which new submissions are accepted.
type DeadlineWindow struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;size:255;not null" json:"name"`
	StartDate time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;not null" json:"end_date"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true;index:idx_deadlines_active" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (DeadlineWindow) TableName() string {
	return "application_deadlines"
}

// IsOpen reports whether the window accepts submissions at now. Both bounds
// are inclusive.
func (d *DeadlineWindow) IsOpen(now time.Time) bool {
	return d.IsActive && !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// DaysRemaining returns the whole days left until EndDate, rounded up, or 0
// when the window is not open.
func (d *DeadlineWindow) DaysRemaining(now time.Time) int {
	if !d.IsOpen(now) {
		return 0
	}
	days := d.EndDate.Sub(now).Hours() / 24
	return int(math.Ceil(days))
}
