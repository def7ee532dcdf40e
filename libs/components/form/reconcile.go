package form

import (
	"bytes"
	"encoding/json"
)

// Plan is the set of writes that brings a form's stored fields in line with a
// target list.
type Plan struct {
	Update []Field
	Create []Field
	Delete []uint
}

// Empty reports whether the plan writes nothing.
func (p Plan) Empty() bool {
	return len(p.Update) == 0 && len(p.Create) == 0 && len(p.Delete) == 0
}

// PlanReconcile matches incoming fields to existing ones by identity.
// An incoming id that is unknown, belongs elsewhere, or was already claimed by
// an earlier entry produces a new field. Existing fields nobody claimed are
// deleted. Unchanged matches are left out of Update.
func PlanReconcile(formID uint, existing []Field, incoming []FieldInput) Plan {
	byID := make(map[uint]Field, len(existing))
	for _, field := range existing {
		byID[field.ID] = field
	}

	var plan Plan
	claimed := make(map[uint]bool, len(incoming))
	for _, in := range incoming {
		target := in.toField(formID)

		if id, ok := in.ID.Value(); ok {
			if current, found := byID[id]; found && !claimed[id] {
				claimed[id] = true
				target.ID = id
				if !sameField(current, target) {
					plan.Update = append(plan.Update, target)
				}
				continue
			}
		}
		plan.Create = append(plan.Create, target)
	}

	for _, field := range existing {
		if !claimed[field.ID] {
			plan.Delete = append(plan.Delete, field.ID)
		}
	}
	return plan
}

func sameField(a, b Field) bool {
	return a.Name == b.Name &&
		a.Type == b.Type &&
		a.Label == b.Label &&
		a.IsRequired == b.IsRequired &&
		a.Order == b.Order &&
		sameDocument(a.Configuration, b.Configuration)
}

// sameDocument compares documents by canonical JSON; encoding/json sorts map keys.
func sameDocument(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}
