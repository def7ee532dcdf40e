package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/elvnski/actserv/libs/components/form"
	"github.com/elvnski/actserv/libs/components/submission"
	"github.com/elvnski/actserv/libs/shared/mail"
	"github.com/elvnski/actserv/libs/shared/mq"
	"github.com/elvnski/actserv/libs/testutil"
)

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func aliceSubmission() *submission.Submission {
	return &submission.Submission{
		ID:               17,
		FormID:           3,
		Form:             &form.Form{ID: 3, Name: "Loan Application"},
		ClientIdentifier: "CUST-TEST-999",
		Entries: []submission.DataEntry{
			{FieldName: "clientName", Value: "Alice Smith"},
			{FieldName: "loanAmount", Value: "150000"},
		},
		Attachments: []submission.Attachment{
			{FieldName: "proofOfIncome", FileRef: "form_uploads/20260101/income_proof.pdf"},
		},
	}
}

func TestRenderListsEntriesAndAttachments(t *testing.T) {
	msg := NewFormatter("no-reply@onboarding.com", []string{"admin@yourcompany.com"}).Render(aliceSubmission())

	assert.Equal(t, "New Form Submission: Loan Application (ID: 17)", msg.Subject)
	assert.Equal(t, "no-reply@onboarding.com", msg.From)
	assert.Equal(t, []string{"admin@yourcompany.com"}, msg.To)

	lines := strings.Split(msg.Body, "\n")
	assert.Contains(t, lines, "Client Identifier: CUST-TEST-999")
	assert.Contains(t, lines, " - clientName: Alice Smith")
	assert.Contains(t, lines, " - loanAmount: 150000")
	assert.Contains(t, msg.Body, "\nAttached Files:\n - proofOfIncome: form_uploads/20260101/income_proof.pdf\n")
	assert.Less(t, strings.Index(msg.Body, "clientName"), strings.Index(msg.Body, "loanAmount"))
}

func TestRenderWithoutAttachmentsOrIdentifier(t *testing.T) {
	sub := aliceSubmission()
	sub.Attachments = nil
	sub.ClientIdentifier = ""

	msg := Formatter{From: "a@b"}.Render(sub)
	assert.Contains(t, msg.Body, "Client Identifier: N/A\n")
	assert.NotContains(t, msg.Body, "Attached Files")
}

func TestRenderUsesLink(t *testing.T) {
	f := NewFormatter("a@b", []string{"c@d"})
	f.Link = func(ref string) string { return "https://cdn.example.com/" + ref }

	msg := f.Render(aliceSubmission())
	assert.Contains(t, msg.Body, " - proofOfIncome: https://cdn.example.com/form_uploads/20260101/income_proof.pdf")
}

type NotifierSuite struct {
	suite.Suite
	ctx    context.Context
	db     *gorm.DB
	repo   *submission.GormRepository
	sender *fakeSender
	sub    *submission.Submission
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.ctx = context.Background()
	models := append([]any{&form.Form{}, &form.Field{}}, submission.Models()...)
	s.db = testutil.NewTestDB(s.T(), models...)
	s.repo = submission.NewGormRepository(s.db)
	s.sender = &fakeSender{}

	forms := form.NewGormRepository(s.db)
	s.Require().NoError(forms.Create(s.ctx, &form.Form{Name: "Loan Application", Slug: "loan", IsActive: true}))
	f, err := forms.FindBySlug(s.ctx, "loan")
	s.Require().NoError(err)

	log := submission.NewEntryLog()
	s.Require().NoError(log.Append("clientName", "Alice Smith"))
	s.Require().NoError(log.Append("loanAmount", "150000"))

	s.sub = &submission.Submission{FormID: f.ID, ClientIdentifier: "CUST-1"}
	s.Require().NoError(s.repo.Create(s.ctx, s.sub, log, []submission.Attachment{
		{FieldName: "proofOfIncome", FileRef: "form_uploads/x.pdf"},
	}))
}

func (s *NotifierSuite) notifier() *Notifier {
	return NewNotifier(s.repo, s.sender, NewFormatter("from@x", []string{"admin@x"}))
}

func (s *NotifierSuite) notified() bool {
	stored, err := s.repo.FindByID(s.ctx, s.sub.ID)
	s.Require().NoError(err)
	return stored.IsNotified
}

func (s *NotifierSuite) TestNotifySendsAndMarks() {
	s.Require().NoError(s.notifier().Notify(s.ctx, s.sub.ID))

	s.Require().Len(s.sender.sent, 1)
	body := s.sender.sent[0].Body
	s.Contains(body, " - clientName: Alice Smith\n - loanAmount: 150000\n")
	s.Contains(body, " - proofOfIncome: form_uploads/x.pdf")
	s.True(s.notified())

	s.Require().NoError(s.notifier().Notify(s.ctx, s.sub.ID))
	s.Len(s.sender.sent, 1, "already notified submissions are not resent")
}

func (s *NotifierSuite) TestSendFailureLeavesFlag() {
	s.sender.err = errors.New("smtp refused")

	s.NoError(s.notifier().Notify(s.ctx, s.sub.ID))
	s.False(s.notified())
}

func (s *NotifierSuite) TestMissingSubmissionIsSkipped() {
	s.NoError(s.notifier().Notify(s.ctx, 9999))
	s.Empty(s.sender.sent)
}

func (s *NotifierSuite) TestQueueBindings() {
	n := s.notifier()

	s.NoError(n.HandleMessage(s.ctx, mq.Message{Value: []byte("garbage")}))
	s.Empty(s.sender.sent)

	task, err := submission.NewNotifyTask(s.sub.ID)
	s.Require().NoError(err)
	s.Require().NoError(n.HandleTask(s.ctx, task))
	s.True(s.notified())

	err = n.HandleTask(s.ctx, asynq.NewTask(submission.TaskNotify, []byte("{}")))
	s.ErrorIs(err, asynq.SkipRetry)
}

func TestNotifierRequiresDependencies(t *testing.T) {
	var n *Notifier
	require.Error(t, n.Notify(context.Background(), 1))
}
