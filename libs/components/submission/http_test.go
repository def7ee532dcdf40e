package submission

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elvnski/actserv/libs/components/form"
	"github.com/elvnski/actserv/libs/testutil"
)

type httpFixture struct {
	router  chi.Router
	service *Service
	store   *memStore
}

func newHTTPFixture(t *testing.T) httpFixture {
	t.Helper()
	db := testutil.NewTestDB(t, testModels()...)
	forms := form.NewGormRepository(db)

	f := loanForm()
	f.ID = 0
	for i := range f.Fields {
		f.Fields[i].ID = 0
	}
	require.NoError(t, forms.Create(context.Background(), f))

	store := newMemStore()
	service := NewService(forms, NewGormRepository(db), store, &recordingScheduler{})
	handler := NewHandler(service)

	router := chi.NewRouter()
	handler.MountClient(router, "")
	handler.MountAdmin(router, "")
	return httpFixture{router: router, service: service, store: store}
}

func TestSubmitJSON(t *testing.T) {
	fx := newHTTPFixture(t)

	rec := testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/", map[string]any{
		"formSlug":         "loan",
		"clientIdentifier": "CUST-001",
		"clientName":       "Jane Doe",
		"loanAmount":       250000,
		"reasonForLoan":    "Growth",
	})
	fx.service.Wait()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := testutil.DecodeBody(t, rec)
	assert.Equal(t, "Submission successful. Notification Processing", body["status"])
	id := body["submissionId"].(float64)

	rec = testutil.DoJSON(t, fx.router, http.MethodGet, fmt.Sprintf("/api/admin/submissions/%d", int(id)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := testutil.DecodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "CUST-001", data["clientIdentifier"])
	assert.Equal(t, map[string]any{"clientName": "Jane Doe", "loanAmount": "250000", "reasonForLoan": "Growth"}, data["data"])
}

func TestSubmitJSONKeepsLargeIntegers(t *testing.T) {
	fx := newHTTPFixture(t)

	rec := testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/",
		`{"formSlug": "loan", "clientIdentifier": "CUST-002", "clientName": "Jane Doe", "loanAmount": 12345678901234567890, "reasonForLoan": "Growth"}`)
	fx.service.Wait()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := testutil.DecodeBody(t, rec)["submissionId"].(float64)

	rec = testutil.DoJSON(t, fx.router, http.MethodGet, fmt.Sprintf("/api/admin/submissions/%d", int(id)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := testutil.DecodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "12345678901234567890", data["data"].(map[string]any)["loanAmount"])
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	fx := newHTTPFixture(t)

	body := `{"formSlug": "loan", "clientIdentifier": "CUST-003", "clientName": "` +
		strings.Repeat("x", maxRequestBytes) + `"}`
	rec := testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSubmitMultipartWithFiles(t *testing.T) {
	fx := newHTTPFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("formSlug", "loan"))
	require.NoError(t, mw.WriteField("clientIdentifier", "CUST-002"))
	require.NoError(t, mw.WriteField("clientName", "Alice Smith"))
	require.NoError(t, mw.WriteField("loanAmount", "5000"))
	part, err := mw.CreateFormFile("proofOfIncome", "payslip.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/client/submissions/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	fx.service.Wait()

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, fx.store.count())

	rec = testutil.DoJSON(t, fx.router, http.MethodGet, "/api/admin/submissions/?form=loan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := testutil.DecodeBody(t, rec)
	assert.EqualValues(t, 1, page["totalRows"])
	assert.EqualValues(t, 12, page["pageSize"])
}

func TestSubmitValidationErrors(t *testing.T) {
	fx := newHTTPFixture(t)

	rec := testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/", map[string]any{
		"formSlug":         "loan",
		"clientIdentifier": "CUST-003",
		"loanAmount":       "ABC",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs := testutil.DecodeBody(t, rec)["errors"].(map[string]any)
	assert.Equal(t, []any{"Client name is required"}, errs["clientName"])
	assert.Equal(t, []any{"Must be a valid number"}, errs["loanAmount"])

	rec = testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/", map[string]any{
		"formSlug": "nope",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs = testutil.DecodeBody(t, rec)["errors"].(map[string]any)
	assert.Equal(t, []any{"Form not found or is inactive"}, errs["formSlug"])

	rec = testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/", map[string]any{
		"formSlug": "loan",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errs = testutil.DecodeBody(t, rec)["errors"].(map[string]any)
	assert.Equal(t, map[string]any{"clientIdentifier": []any{"Client identifier is required"}}, errs)

	rec = testutil.DoJSON(t, fx.router, http.MethodPost, "/api/client/submissions/", "[1,2]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSubmissionLookups(t *testing.T) {
	fx := newHTTPFixture(t)

	rec := testutil.DoJSON(t, fx.router, http.MethodGet, "/api/admin/submissions/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = testutil.DoJSON(t, fx.router, http.MethodGet, "/api/admin/submissions/abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = testutil.DoJSON(t, fx.router, http.MethodGet, "/api/admin/submissions/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := testutil.DecodeBody(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 0, stats["total"])
}
