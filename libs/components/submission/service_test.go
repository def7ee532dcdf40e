package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/elvnski/actserv/libs/components/form"
	"github.com/elvnski/actserv/libs/testutil"
)

type memStore struct {
	mu      sync.Mutex
	seq     int
	objects map[string][]byte
	failOn  string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Save(_ context.Context, r io.Reader, name string) (string, error) {
	if name == s.failOn {
		return "", errors.New("disk full")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ref := fmt.Sprintf("form_uploads/%d-%s", s.seq, name)
	s.objects[ref] = body
	return ref, nil
}

func (s *memStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	return nil
}

func (s *memStore) URL(ref string) string {
	return "/media/" + ref
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (s *recordingScheduler) Schedule(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return s.err
}

func (s *recordingScheduler) scheduled() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.ids...)
}

type failingRepository struct {
	Repository
}

func (failingRepository) Create(context.Context, *Submission, *EntryLog, []Attachment) error {
	return errors.New("database unavailable")
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	db        *gorm.DB
	forms     *form.GormRepository
	repo      *GormRepository
	store     *memStore
	scheduler *recordingScheduler
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func testModels() []any {
	return append([]any{&form.Form{}, &form.Field{}}, Models()...)
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewTestDB(s.T(), testModels()...)
	s.forms = form.NewGormRepository(s.db)
	s.repo = NewGormRepository(s.db)
	s.store = newMemStore()
	s.scheduler = &recordingScheduler{}
	s.service = NewService(s.forms, s.repo, s.store, s.scheduler, WithScheduleTimeout(time.Second))

	f := loanForm()
	f.ID = 0
	for i := range f.Fields {
		f.Fields[i].ID = 0
	}
	s.Require().NoError(s.forms.Create(s.ctx, f))
}

func (s *ServiceSuite) count(model any) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	return n
}

func (s *ServiceSuite) TestSubmitMinimalScenario() {
	s.Require().NoError(s.forms.Create(s.ctx, &form.Form{
		Name:     "Test Validation",
		Slug:     "test-validation",
		IsActive: true,
		Fields: []form.Field{
			{Name: "clientName", Label: "Client name", Type: form.TypeText, IsRequired: true, Order: 1},
			{Name: "loanAmount", Label: "Loan amount", Type: form.TypeNumber, IsRequired: true, Order: 2},
		},
	}))

	sub, err := s.service.Submit(s.ctx, "test-validation", Input{
		ClientIdentifier: "CUST-001",
		Values: map[string]string{
			"clientIdentifier": "CUST-001",
			"formSlug":         "test-validation",
			"clientName":       "Jane Doe",
			"loanAmount":       "250000",
		},
	})
	s.Require().NoError(err)
	s.service.Wait()

	s.NotZero(sub.ID)
	s.Equal("CUST-001", sub.ClientIdentifier)
	s.False(sub.IsNotified)
	s.EqualValues(1, s.count(&Submission{}))
	s.EqualValues(2, s.count(&DataEntry{}))
	s.EqualValues(0, s.count(&Attachment{}))
	s.Equal([]uint{sub.ID}, s.scheduler.scheduled())
}

func (s *ServiceSuite) TestSubmitStoresEntriesAndAttachments() {
	sub, err := s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "CUST-002",
		Values:           map[string]string{"clientName": "Alice Smith", "loanAmount": "50000", "reasonForLoan": ""},
		Files: map[string][]Upload{
			"proofOfIncome": {textUpload("payslip.pdf", "pdf"), textUpload("bank.pdf", "pdf")},
		},
	})
	s.Require().NoError(err)
	s.service.Wait()

	review, err := s.service.Review(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(map[string]string{"clientName": "Alice Smith", "loanAmount": "50000"}, review.Data)
	s.Require().Len(review.Attachments, 2)
	s.Equal("proofOfIncome", review.Attachments[0].FieldName)
	s.Equal("/media/"+review.Attachments[0].Reference, review.Attachments[0].URL)
	s.False(review.Attachments[0].UploadedAt.IsZero())
	s.Equal("Loan", review.Submission.FormName())
	s.Equal(2, s.store.count())
}

func (s *ServiceSuite) TestSubmitInvalidWritesNothing() {
	_, err := s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "ABC"},
		Files:            map[string][]Upload{"proofOfIncome": {textUpload("a.pdf", "x")}},
	})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields["loanAmount"], "Must be a valid number")

	s.service.Wait()
	s.Zero(s.count(&Submission{}))
	s.Zero(s.store.count())
	s.Empty(s.scheduler.scheduled())
}

func (s *ServiceSuite) TestSubmitUnavailableForms() {
	_, err := s.service.Submit(s.ctx, "missing", Input{ClientIdentifier: "C"})
	s.ErrorIs(err, ErrFormUnavailable)

	s.Require().NoError(s.db.Model(&form.Form{}).Where("slug = ?", "loan").Update("is_active", false).Error)
	_, err = s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
	})
	s.ErrorIs(err, ErrFormUnavailable)
	s.Zero(s.count(&Submission{}))
}

func (s *ServiceSuite) TestScheduleFailureDoesNotFailSubmit() {
	s.scheduler.err = errors.New("broker down")

	sub, err := s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
	})
	s.Require().NoError(err)
	s.service.Wait()
	s.NotZero(sub.ID)
	s.EqualValues(1, s.count(&Submission{}))
}

func (s *ServiceSuite) TestStoreFailureRemovesEarlierUploads() {
	s.store.failOn = "second.pdf"

	_, err := s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
		Files: map[string][]Upload{
			"a_doc": {textUpload("first.pdf", "1")},
			"b_doc": {textUpload("second.pdf", "2")},
		},
	})
	s.Require().Error(err)
	s.Zero(s.store.count())
	s.Zero(s.count(&Submission{}))
}

func (s *ServiceSuite) TestPersistFailureRemovesUploads() {
	service := NewService(s.forms, failingRepository{}, s.store, s.scheduler)

	_, err := service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
		Files:            map[string][]Upload{"proofOfIncome": {textUpload("a.pdf", "x")}},
	})
	s.Require().Error(err)
	service.Wait()
	s.Zero(s.store.count())
	s.Empty(s.scheduler.scheduled())
}

func (s *ServiceSuite) TestTransactionRollsBackPartialWrites() {
	s.Require().NoError(s.db.Callback().Create().Before("gorm:create").Register("test:fail_attachments", func(db *gorm.DB) {
		if db.Statement.Schema != nil && db.Statement.Schema.Table == "attachments" {
			_ = db.AddError(errors.New("attachment insert failed"))
		}
	}))

	_, err := s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
		Files:            map[string][]Upload{"proofOfIncome": {textUpload("a.pdf", "x")}},
	})
	s.Require().Error(err)
	s.Zero(s.count(&Submission{}))
	s.Zero(s.count(&DataEntry{}))
	s.Zero(s.store.count())
}

func (s *ServiceSuite) TestListFilterAndStats() {
	for i := 0; i < 3; i++ {
		_, err := s.service.Submit(s.ctx, "loan", Input{
			ClientIdentifier: fmt.Sprintf("C-%d", i),
			Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
		})
		s.Require().NoError(err)
	}
	s.service.Wait()

	rows, total, err := s.service.List(s.ctx, ListFilter{FormSlug: "loan", Limit: 2})
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(rows, 2)
	s.Equal("Loan", rows[0].FormName())

	_, total, err = s.service.List(s.ctx, ListFilter{FormSlug: "other"})
	s.Require().NoError(err)
	s.Zero(total)

	s.Require().NoError(s.repo.MarkNotified(s.ctx, rows[0].ID))
	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, stats.Total)
	s.EqualValues(1, stats.Notified)
	s.EqualValues(2, stats.Pending)

	s.ErrorIs(s.repo.MarkNotified(s.ctx, 9999), ErrNotFound)
}

func (s *ServiceSuite) TestDeletingFormCascadesHistory() {
	_, err := s.service.Submit(s.ctx, "loan", Input{
		ClientIdentifier: "C",
		Values:           map[string]string{"clientName": "Jane", "loanAmount": "1"},
		Files:            map[string][]Upload{"proofOfIncome": {textUpload("a.pdf", "x")}},
	})
	s.Require().NoError(err)
	s.service.Wait()

	s.Require().NoError(s.forms.Delete(s.ctx, "loan"))
	s.Zero(s.count(&Submission{}))
	s.Zero(s.count(&DataEntry{}))
	s.Zero(s.count(&Attachment{}))
}

func (s *ServiceSuite) TestReviewMissing() {
	_, err := s.service.Review(s.ctx, 4242)
	s.True(IsNotFound(err))
}
