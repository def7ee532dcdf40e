package submission

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no submission has the requested id.
var ErrNotFound = errors.New("submission not found")

// ListFilter narrows and pages the admin submission listing.
type ListFilter struct {
	FormSlug string
	Offset   int
	Limit    int
}

// Stats summarises notification progress.
type Stats struct {
	Total                int64 `json:"total"`
	Notified             int64 `json:"notified"`
	Pending              int64 `json:"pending"`
	OldestPendingSeconds int   `json:"oldestPendingSeconds"`
}

// Repository persists submissions and their entries.
type Repository interface {
	Create(ctx context.Context, sub *Submission, entries *EntryLog, attachments []Attachment) error
	List(ctx context.Context, filter ListFilter) ([]Submission, int64, error)
	FindByID(ctx context.Context, id uint) (*Submission, error)
	MarkNotified(ctx context.Context, id uint) error
	Stats(ctx context.Context) (Stats, error)
}

// GormRepository persists submissions via GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a repository backed by the provided DB connection.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create writes the submission, its Data Entries and its Attachments in one
// transaction.
func (r *GormRepository) Create(ctx context.Context, sub *Submission, entries *EntryLog, attachments []Attachment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Form", "Entries", "Attachments").Create(sub).Error; err != nil {
			return err
		}

		if entries != nil && entries.Len() > 0 {
			rows := entries.Rows(sub.ID)
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
			sub.Entries = rows
		}

		if len(attachments) > 0 {
			for i := range attachments {
				attachments[i].SubmissionID = sub.ID
			}
			if err := tx.Create(&attachments).Error; err != nil {
				return err
			}
			sub.Attachments = attachments
		}
		return nil
	})
}

// List returns submissions newest first with their form, plus the unpaged total.
func (r *GormRepository) List(ctx context.Context, filter ListFilter) ([]Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&Submission{})
	if slug := strings.TrimSpace(filter.FormSlug); slug != "" {
		query = query.Where("form_id IN (?)", r.db.Table("forms").Select("id").Where("slug = ?", slug))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Preload("Form").Order("created_at DESC, id DESC")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	var rows []Submission
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// FindByID loads a submission with its form, entries and attachments in
// insertion order.
func (r *GormRepository) FindByID(ctx context.Context, id uint) (*Submission, error) {
	var entity Submission
	err := r.db.WithContext(ctx).
		Preload("Form").
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

// MarkNotified sets the notified flag.
func (r *GormRepository) MarkNotified(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).Where("id = ?", id).Update("is_notified", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates notified and pending counts and the oldest pending age.
func (r *GormRepository) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{}

	type result struct {
		IsNotified bool
		Total      int64
	}

	var rows []result
	if err := r.db.WithContext(ctx).
		Model(&Submission{}).
		Select("is_notified, COUNT(*) as total").
		Group("is_notified").
		Find(&rows).Error; err != nil {
		return stats, err
	}

	for _, row := range rows {
		if row.IsNotified {
			stats.Notified = row.Total
		} else {
			stats.Pending = row.Total
		}
		stats.Total += row.Total
	}

	var oldest Submission
	err := r.db.WithContext(ctx).
		Model(&Submission{}).
		Where("is_notified = ?", false).
		Order("created_at ASC").
		Limit(1).
		Find(&oldest).Error
	if err != nil {
		return stats, err
	}

	if !oldest.CreatedAt.IsZero() {
		wait := time.Since(oldest.CreatedAt)
		if wait < 0 {
			wait = 0
		}
		stats.OldestPendingSeconds = int(wait.Seconds())
	}

	return stats, nil
}

// IsNotFound reports whether an error indicates a missing submission.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
