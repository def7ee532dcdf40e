package form

import (
	"time"

	"gorm.io/datatypes"
)

// FieldType tags how a field is rendered and checked.
type FieldType string

const (
	TypeText       FieldType = "text"
	TypeNumber     FieldType = "number"
	TypeDate       FieldType = "date"
	TypeDropdown   FieldType = "dropdown"
	TypeCheckbox   FieldType = "checkbox"
	TypeFileUpload FieldType = "file_upload"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeDate, TypeDropdown, TypeCheckbox, TypeFileUpload:
		return true
	}
	return false
}

// Form is an administrator-defined template of ordered fields.
type Form struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:255;not null;uniqueIndex"`
	Slug        string    `json:"slug" gorm:"size:255;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	IsActive    bool      `json:"is_active" gorm:"not null;index"`
	Fields      []Field   `json:"fields" gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Field is one typed slot of a Form. Name is the storage key of submitted
// values and is unique within the form.
type Field struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	FormID        uint              `json:"-" gorm:"not null;uniqueIndex:idx_field_form_name"`
	Name          string            `json:"field_name" gorm:"column:field_name;size:100;not null;uniqueIndex:idx_field_form_name"`
	Type          FieldType         `json:"field_type" gorm:"column:field_type;size:50;not null"`
	Label         string            `json:"label" gorm:"size:255;not null"`
	IsRequired    bool              `json:"is_required" gorm:"not null"`
	Order         int               `json:"order" gorm:"column:display_order;not null;index"`
	Configuration datatypes.JSONMap `json:"configuration"`
}

// Config exposes the field's configuration document through typed accessors.
func (f Field) Config() Config {
	return Config(f.Configuration)
}

// ToDTO converts the form into a response-friendly structure.
func (f Form) ToDTO() map[string]any {
	fields := make([]map[string]any, 0, len(f.Fields))
	for _, field := range f.Fields {
		fields = append(fields, field.ToDTO())
	}

	return map[string]any{
		"id":          f.ID,
		"name":        f.Name,
		"slug":        f.Slug,
		"description": f.Description,
		"is_active":   f.IsActive,
		"fields":      fields,
		"createdAt":   f.CreatedAt,
		"updatedAt":   f.UpdatedAt,
	}
}

// ToSummaryDTO omits fields; used by list endpoints.
func (f Form) ToSummaryDTO() map[string]any {
	return map[string]any{
		"id":          f.ID,
		"name":        f.Name,
		"slug":        f.Slug,
		"description": f.Description,
		"is_active":   f.IsActive,
	}
}

// ToDTO converts the field into a response-friendly structure.
func (f Field) ToDTO() map[string]any {
	configuration := map[string]any{}
	if f.Configuration != nil {
		configuration = map[string]any(f.Configuration)
	}

	return map[string]any{
		"id":            f.ID,
		"field_name":    f.Name,
		"field_type":    f.Type,
		"label":         f.Label,
		"is_required":   f.IsRequired,
		"order":         f.Order,
		"configuration": configuration,
	}
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{&Form{}, &Field{}}
}
