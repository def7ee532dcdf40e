package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no form has the requested slug.
	ErrNotFound = errors.New("form not found")
	// ErrConflict is returned when a write violates a uniqueness rule
	// (form name, form slug, or field name within a form).
	ErrConflict = errors.New("form conflicts with existing data")
)

const fieldOrder = "display_order ASC, id ASC"

// ListFilter narrows and pages form listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Offset     int
	Limit      int
}

// Attributes are the form-level columns written by a reconcile.
type Attributes struct {
	Name        string
	Slug        string
	Description string
	IsActive    bool
}

// Repository defines the persistence contract for forms.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Form, int64, error)
	FindBySlug(ctx context.Context, slug string) (*Form, error)
	Create(ctx context.Context, entity *Form) error
	Reconcile(ctx context.Context, slug string, attrs Attributes, fields []FieldInput) (*Form, Plan, error)
	Delete(ctx context.Context, slug string) error
}

// GormRepository provides a relational-backed implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a repository from a database connection.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// List returns forms ordered by name with the total count before paging.
func (r *GormRepository) List(ctx context.Context, filter ListFilter) ([]Form, int64, error) {
	query := r.db.WithContext(ctx).Model(&Form{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(slug) LIKE LOWER(?)", like, like)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("name ASC, id ASC")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	var forms []Form
	if err := query.Find(&forms).Error; err != nil {
		return nil, 0, err
	}
	return forms, total, nil
}

// FindBySlug loads a form with its fields in display order.
func (r *GormRepository) FindBySlug(ctx context.Context, slug string) (*Form, error) {
	var entity Form
	err := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order(fieldOrder) }).
		First(&entity, "slug = ?", slug).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

// Create persists a form and its fields in one transaction.
func (r *GormRepository) Create(ctx context.Context, entity *Form) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := entity.Fields
		if err := tx.Omit("Fields").Create(entity).Error; err != nil {
			return err
		}
		for i := range fields {
			fields[i].ID = 0
			fields[i].FormID = entity.ID
		}
		if len(fields) > 0 {
			if err := tx.Create(&fields).Error; err != nil {
				return err
			}
		}
		entity.Fields = fields
		return nil
	})
	return translate(err)
}

// Reconcile updates the form's attributes and brings its fields in line with
// the target list. Nothing is written unless every step succeeds.
func (r *GormRepository) Reconcile(ctx context.Context, slug string, attrs Attributes, fields []FieldInput) (*Form, Plan, error) {
	var (
		plan   Plan
		formID uint
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity Form
		if err := tx.First(&entity, "slug = ?", slug).Error; err != nil {
			return err
		}
		formID = entity.ID

		if entity.Name != attrs.Name || entity.Slug != attrs.Slug ||
			entity.Description != attrs.Description || entity.IsActive != attrs.IsActive {
			err := tx.Model(&entity).
				Select("name", "slug", "description", "is_active").
				Updates(Form{Name: attrs.Name, Slug: attrs.Slug, Description: attrs.Description, IsActive: attrs.IsActive}).Error
			if err != nil {
				return err
			}
		}

		var existing []Field
		if err := tx.Where("form_id = ?", entity.ID).Order(fieldOrder).Find(&existing).Error; err != nil {
			return err
		}

		plan = PlanReconcile(entity.ID, existing, fields)

		if len(plan.Delete) > 0 {
			if err := tx.Where("form_id = ? AND id IN ?", entity.ID, plan.Delete).Delete(&Field{}).Error; err != nil {
				return err
			}
		}
		if err := stageRenames(tx, entity.ID, existing, plan.Update); err != nil {
			return err
		}
		for _, field := range plan.Update {
			err := tx.Model(&Field{}).
				Where("id = ? AND form_id = ?", field.ID, entity.ID).
				Updates(map[string]any{
					"field_name":    field.Name,
					"field_type":    string(field.Type),
					"label":         field.Label,
					"is_required":   field.IsRequired,
					"display_order": field.Order,
					"configuration": field.Configuration,
				}).Error
			if err != nil {
				return err
			}
		}
		if len(plan.Create) > 0 {
			if err := tx.Create(&plan.Create).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, Plan{}, translate(err)
	}

	reloaded, err := r.findByID(ctx, formID)
	if err != nil {
		return nil, Plan{}, err
	}
	return reloaded, plan, nil
}

// stageRenames moves every renamed field to a placeholder name first so the
// per-field unique index holds while names are swapped or rotated.
func stageRenames(tx *gorm.DB, formID uint, existing []Field, updates []Field) error {
	current := make(map[uint]string, len(existing))
	for _, field := range existing {
		current[field.ID] = field.Name
	}
	for _, field := range updates {
		if name, ok := current[field.ID]; !ok || name == field.Name {
			continue
		}
		err := tx.Model(&Field{}).
			Where("id = ? AND form_id = ?", field.ID, formID).
			Update("field_name", fmt.Sprintf("__renaming_%d", field.ID)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a form; the schema cascades to fields and submission history.
func (r *GormRepository) Delete(ctx context.Context, slug string) error {
	result := r.db.WithContext(ctx).Delete(&Form{}, "slug = ?", slug)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) findByID(ctx context.Context, id uint) (*Form, error) {
	var entity Form
	err := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order(fieldOrder) }).
		First(&entity, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

// IsNotFound reports whether an error indicates a missing form.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
