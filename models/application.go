package models

import (
	"math"
	"time"
)

// Application statuses. Pending is the only legal initial value; approved and
// rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// SystemActor is recorded as changed_by on entries the engine writes itself.
const SystemActor = "system"

// Application is a single bursary request and its current lifecycle status.
type Application struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	Reference   string    `gorm:"column:reference;size:32;not null;uniqueIndex:uq_applications_reference" json:"reference_number"`
	Status      string    `gorm:"column:status;size:20;not null;default:pending;index:idx_applications_status" json:"status"`
	SubmittedAt time.Time `gorm:"column:submitted_at;not null;index:idx_applications_submitted_at" json:"submitted_at"`
	Email       string    `gorm:"column:email;size:255;not null;index:idx_applications_email" json:"email"`

	// Personal information
	FullName      string `gorm:"column:full_name;size:255" json:"full_name"`
	Gender        string `gorm:"column:gender;size:10" json:"gender"`
	Disability    bool   `gorm:"column:disability" json:"disability"`
	IDNumber      string `gorm:"column:id_number;size:50;not null;uniqueIndex:uq_applications_id_number" json:"id_number"`
	PhoneNumber   string `gorm:"column:phone_number;size:15" json:"phone_number"`
	GuardianPhone string `gorm:"column:guardian_phone;size:15" json:"guardian_phone"`
	GuardianID    string `gorm:"column:guardian_id;size:50" json:"guardian_id"`

	// Residence
	Ward          string `gorm:"column:ward;size:50;index:idx_applications_ward" json:"ward"`
	Village       string `gorm:"column:village;size:100" json:"village"`
	ChiefName     string `gorm:"column:chief_name;size:255" json:"chief_name"`
	ChiefPhone    string `gorm:"column:chief_phone;size:15" json:"chief_phone"`
	SubChiefName  string `gorm:"column:sub_chief_name;size:255" json:"sub_chief_name"`
	SubChiefPhone string `gorm:"column:sub_chief_phone;size:15" json:"sub_chief_phone"`

	// Institution
	LevelOfStudy    string `gorm:"column:level_of_study;size:20" json:"level_of_study"`
	InstitutionType string `gorm:"column:institution_type;size:20" json:"institution_type"`
	InstitutionName string `gorm:"column:institution_name;size:255" json:"institution_name"`
	AdmissionNumber string `gorm:"column:admission_number;size:100" json:"admission_number"`
	Amount          uint   `gorm:"column:amount" json:"amount"`
	ModeOfStudy     string `gorm:"column:mode_of_study;size:20" json:"mode_of_study"`
	YearOfStudy     string `gorm:"column:year_of_study;size:20" json:"year_of_study"`

	// Family
	FamilyStatus string  `gorm:"column:family_status;size:50" json:"family_status"`
	FatherIncome *string `gorm:"column:father_income;size:20" json:"father_income,omitempty"`
	MotherIncome *string `gorm:"column:mother_income;size:20" json:"mother_income,omitempty"`

	Confirmation bool      `gorm:"column:confirmation" json:"confirmation"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Documents  []ApplicationDocument `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	StatusLogs []StatusLogEntry      `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Application) TableName() string {
	return "applications"
}

// IsPending reports whether a status decision is still outstanding.
func (a *Application) IsPending() bool {
	return a.Status == StatusPending
}

// IsFinal reports whether the application reached a terminal status.
func (a *Application) IsFinal() bool {
	return a.Status == StatusApproved || a.Status == StatusRejected
}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// PublicApplication is the view of an application served to anonymous
// callers: tracking data only, no personal fields.
type PublicApplication struct {
	Reference   string           `json:"reference_number"`
	Status      string           `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	Documents   []PublicDocument `json:"documents"`
}

type PublicDocument struct {
	Kind        string    `json:"kind"`
	ContentType string    `json:"content_type"`
	SizeMB      float64   `json:"size_mb"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Public returns the anonymous view of a.
func (a *Application) Public() PublicApplication {
	docs := make([]PublicDocument, 0, len(a.Documents))
	for i := range a.Documents {
		d := &a.Documents[i]
		docs = append(docs, PublicDocument{
			Kind:        d.Kind,
			ContentType: d.ContentType,
			SizeMB:      math.Round(d.GetFileSizeInMB()*100) / 100,
			UploadedAt:  d.CreatedAt,
		})
	}
	return PublicApplication{
		Reference:   a.Reference,
		Status:      a.Status,
		SubmittedAt: a.SubmittedAt,
		Documents:   docs,
	}
}
