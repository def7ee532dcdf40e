package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elvnski/actserv/libs/components/form"
	"github.com/elvnski/actserv/libs/shared/observability"
	"github.com/elvnski/actserv/libs/shared/storage"
)

const defaultScheduleTimeout = 5 * time.Second

// FormFinder loads a form with its ordered fields.
type FormFinder interface {
	FindBySlug(ctx context.Context, slug string) (*form.Form, error)
}

// Service accepts client submissions and serves the admin review.
type Service struct {
	forms           FormFinder
	repo            Repository
	store           storage.Store
	scheduler       Scheduler
	scheduleTimeout time.Duration
	pending         sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithScheduleTimeout bounds each background scheduling call.
func WithScheduleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.scheduleTimeout = d
		}
	}
}

// NewService wires the submission pipeline. A nil scheduler disables
// notifications.
func NewService(forms FormFinder, repo Repository, store storage.Store, scheduler Scheduler, opts ...Option) *Service {
	if scheduler == nil {
		scheduler = NopScheduler{}
	}
	s := &Service{
		forms:           forms,
		repo:            repo,
		store:           store,
		scheduler:       scheduler,
		scheduleTimeout: defaultScheduleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and stores a submission, then schedules its notification
// without waiting for it. Nothing is written when validation fails.
func (s *Service) Submit(ctx context.Context, slug string, in Input) (*Submission, error) {
	f, err := s.forms.FindBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if form.IsNotFound(err) {
			observability.Submissions.WithLabelValues("unavailable").Inc()
			return nil, ErrFormUnavailable
		}
		observability.Submissions.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := Validate(f, in); err != nil {
		if errors.Is(err, ErrFormUnavailable) {
			observability.Submissions.WithLabelValues("unavailable").Inc()
		} else {
			observability.Submissions.WithLabelValues("invalid").Inc()
		}
		return nil, err
	}

	order := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		order = append(order, field.Name)
	}
	entries := logFromValues(order, in.Values)

	attachments, err := s.storeUploads(ctx, in.Files)
	if err != nil {
		observability.Submissions.WithLabelValues("error").Inc()
		return nil, err
	}

	sub := &Submission{
		FormID:           f.ID,
		ClientIdentifier: in.clientIdentifier(),
	}
	if err := s.repo.Create(ctx, sub, entries, attachments); err != nil {
		s.discard(attachments)
		observability.Submissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	observability.Submissions.WithLabelValues("accepted").Inc()
	slog.Info("submission accepted",
		"submission_id", sub.ID,
		"form", f.Slug,
		"entries", entries.Len(),
		"attachments", len(attachments),
	)

	s.scheduleAsync(ctx, sub.ID)
	return sub, nil
}

// Wait blocks until background scheduling calls have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) scheduleAsync(ctx context.Context, submissionID uint) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.scheduleTimeout)
		defer cancel()

		if err := s.scheduler.Schedule(ctx, submissionID); err != nil {
			observability.Notifications.WithLabelValues("schedule_failed").Inc()
			slog.Error("failed to schedule notification", "submission_id", submissionID, "err", err)
			return
		}
		observability.Notifications.WithLabelValues("scheduled").Inc()
	}()
}

// storeUploads writes every upload in field name order. On failure, files
// already written are removed.
func (s *Service) storeUploads(ctx context.Context, files map[string][]Upload) ([]Attachment, error) {
	names := make([]string, 0, len(files))
	for name, uploads := range files {
		if len(uploads) > 0 && !isReserved(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	if s.store == nil {
		return nil, errors.New("file storage not configured")
	}
	sort.Strings(names)

	var stored []Attachment
	for _, name := range names {
		for _, upload := range files[name] {
			ref, err := s.storeOne(ctx, upload)
			if err != nil {
				s.discard(stored)
				return nil, fmt.Errorf("store %s upload %q: %w", name, upload.Filename, err)
			}
			stored = append(stored, Attachment{FieldName: name, FileRef: ref})
		}
	}
	return stored, nil
}

func (s *Service) storeOne(ctx context.Context, upload Upload) (string, error) {
	if upload.Open == nil {
		return "", errors.New("upload has no content")
	}
	body, err := upload.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()
	return s.store.Save(ctx, body, upload.Filename)
}

func (s *Service) discard(attachments []Attachment) {
	for _, a := range attachments {
		ctx, cancel := context.WithTimeout(context.Background(), s.scheduleTimeout)
		if err := s.store.Delete(ctx, a.FileRef); err != nil {
			slog.Warn("failed to remove orphaned upload", "file", a.FileRef, "err", err)
		}
		cancel()
	}
}

// AttachmentView is an attachment as shown to reviewers.
type AttachmentView struct {
	FieldName  string    `json:"fieldName"`
	Reference  string    `json:"file"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Review is the read-only admin view of one submission.
type Review struct {
	Submission  *Submission
	Data        map[string]string
	Attachments []AttachmentView
}

// ToDTO converts the review into a response-friendly structure.
func (r Review) ToDTO() map[string]any {
	dto := r.Submission.ToSummaryDTO()
	dto["data"] = r.Data
	dto["attachments"] = r.Attachments
	return dto
}

// List pages through submissions for the admin table.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Submission, int64, error) {
	return s.repo.List(ctx, filter)
}

// Review flattens a submission's entries and resolves its attachment URLs.
func (s *Service) Review(ctx context.Context, id uint) (*Review, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	views := make([]AttachmentView, 0, len(sub.Attachments))
	for _, a := range sub.Attachments {
		view := AttachmentView{FieldName: a.FieldName, Reference: a.FileRef, UploadedAt: a.UploadedAt}
		if s.store != nil {
			view.URL = s.store.URL(a.FileRef)
		}
		views = append(views, view)
	}

	return &Review{
		Submission:  sub,
		Data:        LogFromRows(sub.Entries).Map(),
		Attachments: views,
	}, nil
}

// Stats reports notification progress.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}
