package submission

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"

	"github.com/elvnski/actserv/libs/shared/httpx"
)

const (
	maxMultipartMemory = 32 << 20
	maxRequestBytes    = 64 << 20
	statusAccepted     = "Submission successful. Notification Processing"
)

// Handler exposes the client submission endpoint and the admin review.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler backed by the provided service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountClient registers the submission endpoint under basePath.
func (h *Handler) MountClient(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/api/client/submissions"
	}

	router.Route(path, func(r chi.Router) {
		r.Post("/", h.submit)
	})
}

// MountAdmin registers the read-only review routes under basePath.
func (h *Handler) MountAdmin(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/api/admin/submissions"
	}

	router.Route(path, func(r chi.Router) {
		r.Get("/", h.listSubmissions)
		r.Get("/stats", h.stats)
		r.Get("/{id}", h.getSubmission)
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	slug, in, err := readSubmission(r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.service.Submit(r.Context(), slug, in)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.FieldErrors(w, http.StatusBadRequest, verr.Fields)
		case errors.Is(err, ErrFormUnavailable):
			httpx.FieldErrors(w, http.StatusBadRequest, map[string][]string{KeyFormSlug: {MsgFormUnavailable}})
		default:
			slog.Error("submission failed", "form", slug, "err", err)
			httpx.Error(w, http.StatusInternalServerError, "submission could not be stored")
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"submissionId": sub.ID,
		"status":       statusAccepted,
	})
}

// readSubmission accepts multipart forms (with files) or a flat JSON object.
func readSubmission(r *http.Request) (string, Input, error) {
	in := Input{Values: map[string]string{}, Files: map[string][]Upload{}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
				return "", in, err
			}
		} else if err := r.ParseForm(); err != nil {
			return "", in, err
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				in.Values[key] = values[0]
			}
		}
		if r.MultipartForm != nil {
			for key, headers := range r.MultipartForm.File {
				for _, fh := range headers {
					in.Files[key] = append(in.Files[key], UploadFromMultipart(fh))
				}
			}
		}
	default:
		var body map[string]any
		defer r.Body.Close()
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", in, err
			}
			return "", in, errors.New("request body must be a JSON object or multipart form")
		}
		for key, value := range body {
			if value == nil {
				continue
			}
			in.Values[key] = cast.ToString(value)
		}
	}

	slug := strings.TrimSpace(in.Values[KeyFormSlug])
	if slug == "" {
		slug = strings.TrimSpace(r.URL.Query().Get("form"))
	}
	in.ClientIdentifier = strings.TrimSpace(in.Values[KeyClientIdentifier])
	return slug, in, nil
}

func (h *Handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	rows, total, err := h.service.List(r.Context(), ListFilter{
		FormSlug: strings.TrimSpace(r.URL.Query().Get("form")),
		Offset:   page.Offset(),
		Limit:    page.Size,
	})
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.ToSummaryDTO())
	}
	httpx.JSON(w, http.StatusOK, httpx.Paginated(page, total, items))
}

func (h *Handler) getSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		httpx.Error(w, http.StatusNotFound, "submission not found")
		return
	}

	review, err := h.service.Review(r.Context(), uint(id))
	if err != nil {
		if IsNotFound(err) {
			httpx.Error(w, http.StatusNotFound, "submission not found")
			return
		}
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": review.ToDTO()})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": stats})
}
