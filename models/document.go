package models

import (
	"time"
)

// Document kinds accepted with an application.
const (
	DocumentIDFront                = "id_front"
	DocumentIDBack                 = "id_back"
	DocumentAdmissionLetter        = "admission_letter"
	DocumentFatherDeathCertificate = "father_death_certificate"
	DocumentMotherDeathCertificate = "mother_death_certificate"
	DocumentOther                  = "other"
)

// ApplicationDocument points at an uploaded file held by the blob store. The
// engine never reads the bytes, only the handle.
type ApplicationDocument struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID uint      `gorm:"column:application_id;not null;index" json:"application_id"`
	Kind          string    `gorm:"column:kind;size:50;not null" json:"kind"`
	OriginalName  string    `gorm:"column:original_name;size:255" json:"original_name"`
	ContentType   string    `gorm:"column:content_type;size:100" json:"content_type"`
	Size          int64     `gorm:"column:size" json:"size"`
	BlobHandle    string    `gorm:"column:blob_handle;size:512;not null;index" json:"-"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides
func (ApplicationDocument) TableName() string {
	return "application_documents"
}

// ValidDocumentKind reports whether kind is a known document kind.
func ValidDocumentKind(kind string) bool {
	switch kind {
	case DocumentIDFront, DocumentIDBack, DocumentAdmissionLetter,
		DocumentFatherDeathCertificate, DocumentMotherDeathCertificate, DocumentOther:
		return true
	}
	return false
}

// IsAllowedContentType reports whether an upload of this MIME type is accepted.
func IsAllowedContentType(mimeType string) bool {
	validTypes := []string{"application/pdf", "image/jpeg", "image/jpg", "image/png"}
	for _, validType := range validTypes {
		if mimeType == validType {
			return true
		}
	}
	return false
}

func (d *ApplicationDocument) GetFileSizeInMB() float64 {
	return float64(d.Size) / (1024 * 1024)
}
