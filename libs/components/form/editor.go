package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/elvnski/actserv/libs/shared/observability"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// InputError lists field-level problems with an editor payload.
type InputError struct {
	Fields map[string][]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid form input: " + strings.Join(keys, ", ")
}

// Editor is the administrator-facing schema service.
type Editor struct {
	repo     Repository
	validate *validator.Validate
}

// NewEditor wires an Editor to its repository.
func NewEditor(repo Repository) *Editor {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("fieldtype", func(fl validator.FieldLevel) bool {
		return FieldType(strings.TrimSpace(fl.Field().String())).Valid()
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Editor{repo: repo, validate: v}
}

// List returns a page of forms and the unpaged total.
func (e *Editor) List(ctx context.Context, filter ListFilter) ([]Form, int64, error) {
	return e.repo.List(ctx, filter)
}

// Get loads a form by slug with its ordered fields.
func (e *Editor) Get(ctx context.Context, slug string) (*Form, error) {
	return e.repo.FindBySlug(ctx, strings.TrimSpace(slug))
}

// Create stores a new form with all of its fields.
func (e *Editor) Create(ctx context.Context, in FormInput) (*Form, error) {
	in = normalize(in)
	if err := e.check(in); err != nil {
		return nil, err
	}

	entity := &Form{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		IsActive:    isActive(in.IsActive, true),
		Fields:      make([]Field, 0, len(in.Fields)),
	}
	for _, field := range in.Fields {
		entity.Fields = append(entity.Fields, field.toField(0))
	}

	if err := e.repo.Create(ctx, entity); err != nil {
		observability.SchemaEdits.WithLabelValues("create_failed").Inc()
		return nil, fmt.Errorf("create form %q: %w", in.Slug, err)
	}
	observability.SchemaEdits.WithLabelValues("create").Inc()
	slog.Info("form created", "form", entity.Slug, "fields", len(entity.Fields))

	return e.repo.FindBySlug(ctx, entity.Slug)
}

// Replace overwrites the form's attributes and reconciles its field list.
// A missing is_active keeps the stored value.
func (e *Editor) Replace(ctx context.Context, slug string, in FormInput) (*Form, error) {
	in = normalize(in)
	if err := e.check(in); err != nil {
		return nil, err
	}

	current, err := e.repo.FindBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		return nil, err
	}

	attrs := Attributes{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		IsActive:    isActive(in.IsActive, current.IsActive),
	}

	updated, plan, err := e.repo.Reconcile(ctx, current.Slug, attrs, in.Fields)
	if err != nil {
		observability.SchemaEdits.WithLabelValues("replace_failed").Inc()
		return nil, fmt.Errorf("replace form %q: %w", slug, err)
	}
	observability.SchemaEdits.WithLabelValues("replace").Inc()
	slog.Info("form reconciled",
		"form", updated.Slug,
		"updated", len(plan.Update),
		"created", len(plan.Create),
		"deleted", len(plan.Delete),
	)
	return updated, nil
}

// Delete removes a form and, by cascade, its submission history.
func (e *Editor) Delete(ctx context.Context, slug string) error {
	if err := e.repo.Delete(ctx, strings.TrimSpace(slug)); err != nil {
		return err
	}
	observability.SchemaEdits.WithLabelValues("delete").Inc()
	slog.Info("form deleted", "form", slug)
	return nil
}

func (e *Editor) check(in FormInput) error {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &InputError{Fields: map[string][]string{}}
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "FormInput.")
		out.Fields[key] = append(out.Fields[key], message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	case "fieldtype":
		return fmt.Sprintf("%q is not a valid choice.", fe.Value())
	}
	return "Invalid value."
}

func normalize(in FormInput) FormInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func isActive(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
