package form

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

// FormInput is the administrator's full description of a form.
type FormInput struct {
	Name        string       `json:"name" validate:"required,max=255"`
	Slug        string       `json:"slug" validate:"required,max=255,slug"`
	Description string       `json:"description"`
	IsActive    *bool        `json:"is_active"`
	Fields      []FieldInput `json:"fields" validate:"dive"`
}

// FieldInput describes one target field of a reconcile.
type FieldInput struct {
	ID            FieldRef       `json:"id"`
	Name          string         `json:"field_name" validate:"required,max=100"`
	Type          FieldType      `json:"field_type" validate:"required,fieldtype"`
	Label         string         `json:"label" validate:"required,max=255"`
	IsRequired    bool           `json:"is_required"`
	Order         int            `json:"order"`
	Configuration map[string]any `json:"configuration"`
}

// FieldRef is the optional identity sent with a field. Only positive integers
// can reference a stored field; anything else, such as the fractional
// placeholders the builder UI assigns to unsaved rows, decodes as absent.
type FieldRef struct {
	id    uint
	valid bool
}

// Ref returns a reference to a stored field.
func Ref(id uint) FieldRef {
	return FieldRef{id: id, valid: id > 0}
}

// Value returns the referenced id, if any.
func (r FieldRef) Value() (uint, bool) {
	return r.id, r.valid
}

// UnmarshalJSON never fails: unusable identities are discarded.
func (r *FieldRef) UnmarshalJSON(b []byte) error {
	*r = FieldRef{}

	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	switch v := raw.(type) {
	case float64:
		if v > 0 && v == math.Trunc(v) && v <= math.MaxUint32 {
			*r = Ref(uint(v))
		}
	case string:
		if n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32); err == nil {
			*r = Ref(uint(n))
		}
	}
	return nil
}

// MarshalJSON encodes absent references as null.
func (r FieldRef) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

func (in FieldInput) toField(formID uint) Field {
	configuration := datatypes.JSONMap{}
	for k, v := range in.Configuration {
		configuration[k] = v
	}

	return Field{
		FormID:        formID,
		Name:          strings.TrimSpace(in.Name),
		Type:          FieldType(strings.TrimSpace(string(in.Type))),
		Label:         strings.TrimSpace(in.Label),
		IsRequired:    in.IsRequired,
		Order:         in.Order,
		Configuration: configuration,
	}
}

// InputFromForm rebuilds the editor input for a stored form, using current ids.
func InputFromForm(f Form) FormInput {
	active := f.IsActive
	in := FormInput{
		Name:        f.Name,
		Slug:        f.Slug,
		Description: f.Description,
		IsActive:    &active,
		Fields:      make([]FieldInput, 0, len(f.Fields)),
	}
	for _, field := range f.Fields {
		in.Fields = append(in.Fields, FieldInput{
			ID:            Ref(field.ID),
			Name:          field.Name,
			Type:          field.Type,
			Label:         field.Label,
			IsRequired:    field.IsRequired,
			Order:         field.Order,
			Configuration: map[string]any(field.Configuration),
		})
	}
	return in
}
