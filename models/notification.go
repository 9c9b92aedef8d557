package models

import "time"

// Notification events.
const (
	EventCreated       = "created"
	EventStatusChanged = "status_changed"
)

// NotificationRecord is one delivery attempt made by the notifier.
type NotificationRecord struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID uint      `gorm:"column:application_id;index" json:"application_id"`
	Event         string    `gorm:"column:event;size:30" json:"event"`     // created|status_changed
	Channel       string    `gorm:"column:channel;size:20" json:"channel"` // email
	Recipient     string    `gorm:"column:recipient;size:255" json:"recipient"`
	Success       bool      `gorm:"column:success" json:"success"`
	Error         *string   `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (NotificationRecord) TableName() string { return "notification_records" }
