package submission

import (
	"time"

	"github.com/elvnski/actserv/libs/components/form"
)

// Submission is one accepted client payload. Only IsNotified changes after
// creation.
type Submission struct {
	ID               uint         `json:"id" gorm:"primaryKey"`
	FormID           uint         `json:"formId" gorm:"not null;index"`
	Form             *form.Form   `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	ClientIdentifier string       `json:"clientIdentifier" gorm:"size:255;not null;index"`
	IsNotified       bool         `json:"isNotified" gorm:"not null;index"`
	CreatedAt        time.Time    `json:"createdAt" gorm:"index"`
	Entries          []DataEntry  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	Attachments      []Attachment `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
}

// DataEntry stores one submitted value as text, independent of the field's
// current schema.
type DataEntry struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	SubmissionID uint   `json:"-" gorm:"not null;uniqueIndex:idx_entry_submission_field"`
	FieldName    string `json:"fieldName" gorm:"size:100;not null;uniqueIndex:idx_entry_submission_field"`
	Value        string `json:"value" gorm:"type:text;not null"`
}

// Attachment references one uploaded file in external storage.
type Attachment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	SubmissionID uint      `json:"-" gorm:"not null;index"`
	FieldName    string    `json:"fieldName" gorm:"size:100;not null"`
	FileRef      string    `json:"file" gorm:"size:500;not null"`
	UploadedAt   time.Time `json:"uploadedAt" gorm:"autoCreateTime"`
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{&Submission{}, &DataEntry{}, &Attachment{}}
}

// FormName returns the owning form's name when it was loaded.
func (s Submission) FormName() string {
	if s.Form == nil {
		return ""
	}
	return s.Form.Name
}

// ToSummaryDTO is the row shape of the admin submission table.
func (s Submission) ToSummaryDTO() map[string]any {
	dto := map[string]any{
		"id":               s.ID,
		"formId":           s.FormID,
		"clientIdentifier": s.ClientIdentifier,
		"isNotified":       s.IsNotified,
		"createdAt":        s.CreatedAt,
	}
	if s.Form != nil {
		dto["formName"] = s.Form.Name
		dto["formSlug"] = s.Form.Slug
	}
	return dto
}
