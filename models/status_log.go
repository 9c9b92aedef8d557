package models

import "time"

// StatusLogEntry records one status transition of an application. Rows are
// append-only; the engine never updates or deletes them.
type StatusLogEntry struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID uint      `gorm:"column:application_id;not null;index:idx_status_logs_app_changed,priority:1" json:"application_id"`
	OldStatus     *string   `gorm:"column:old_status;size:20" json:"old_status"`
	NewStatus     string    `gorm:"column:new_status;size:20;not null" json:"new_status"`
	ChangedBy     string    `gorm:"column:changed_by;size:150;not null" json:"changed_by"`
	Reason        *string   `gorm:"column:reason;type:text" json:"reason"`
	ChangedAt     time.Time `gorm:"column:changed_at;not null;index:idx_status_logs_app_changed,priority:2,sort:desc" json:"changed_at"`
}

// TableName specifies the table for StatusLogEntry.
func (StatusLogEntry) TableName() string {
	return "application_status_logs"
}

// IsCreation reports whether this is the synthetic entry written when the
// application was created.
func (e StatusLogEntry) IsCreation() bool {
	return e.OldStatus == nil && e.NewStatus == StatusPending
}
