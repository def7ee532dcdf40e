package form

import (
	"strings"

	"github.com/spf13/cast"
)

// Recognised configuration keys. Anything else is carried through untouched.
const (
	ConfigOptions    = "options"
	ConfigMin        = "min"
	ConfigMax        = "max"
	ConfigDependency = "dependency"
)

// Dependency conditions and actions.
const (
	ConditionGreater = ">"
	ConditionLess    = "<"
	ActionRequired   = "is_required"
)

// Config is the open-ended per-field configuration document.
type Config map[string]any

// Option is one dropdown choice.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Dependency makes a field required when another field's submitted value
// compares true against Value under Condition.
type Dependency struct {
	TargetField string `json:"target_field"`
	Condition   string `json:"condition"`
	Value       any    `json:"value"`
	Action      string `json:"action"`
}

// Options returns the dropdown choices, skipping malformed entries.
func (c Config) Options() []Option {
	raw, ok := c[ConfigOptions].([]any)
	if !ok {
		return nil
	}

	options := make([]Option, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			value := cast.ToString(v["value"])
			if value == "" {
				continue
			}
			label := cast.ToString(v["label"])
			if label == "" {
				label = value
			}
			options = append(options, Option{Value: value, Label: label})
		case string:
			if v != "" {
				options = append(options, Option{Value: v, Label: v})
			}
		}
	}
	return options
}

// Bounds returns the numeric min/max when present and numeric.
func (c Config) Bounds() (lower, upper *float64) {
	if v, err := cast.ToFloat64E(c[ConfigMin]); err == nil && c[ConfigMin] != nil {
		lower = &v
	}
	if v, err := cast.ToFloat64E(c[ConfigMax]); err == nil && c[ConfigMax] != nil {
		upper = &v
	}
	return lower, upper
}

// Dependency returns the conditional-requirement rule, if one is configured
// with a target field and a supported action.
func (c Config) Dependency() (Dependency, bool) {
	raw, ok := c[ConfigDependency].(map[string]any)
	if !ok {
		return Dependency{}, false
	}

	dep := Dependency{
		TargetField: strings.TrimSpace(cast.ToString(raw["target_field"])),
		Condition:   strings.TrimSpace(cast.ToString(raw["condition"])),
		Value:       raw["value"],
		Action:      strings.TrimSpace(cast.ToString(raw["action"])),
	}
	if dep.TargetField == "" {
		return Dependency{}, false
	}
	if dep.Action == "" {
		dep.Action = ActionRequired
	}
	if dep.Action != ActionRequired {
		return Dependency{}, false
	}
	return dep, true
}

// Met compares the target field's submitted value against the rule. An
// absent or empty target counts as 0; anything non-numeric is never met.
func (d Dependency) Met(target string) bool {
	left := 0.0
	if target = strings.TrimSpace(target); target != "" {
		v, err := cast.ToFloat64E(target)
		if err != nil {
			return false
		}
		left = v
	}

	if s, ok := d.Value.(string); ok && strings.TrimSpace(s) == "" {
		return false
	}
	right, err := cast.ToFloat64E(d.Value)
	if err != nil || d.Value == nil {
		return false
	}

	switch d.Condition {
	case ConditionGreater:
		return left > right
	case ConditionLess:
		return left < right
	}
	return false
}
