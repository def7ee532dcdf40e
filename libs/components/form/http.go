package form

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/elvnski/actserv/libs/shared/httpx"
)

// Handler exposes the admin and client form endpoints.
type Handler struct {
	editor *Editor
}

// NewHandler constructs a Handler backed by the provided editor.
func NewHandler(editor *Editor) *Handler {
	return &Handler{editor: editor}
}

// MountAdmin registers the schema management routes under basePath.
func (h *Handler) MountAdmin(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/api/admin/forms"
	}

	router.Route(path, func(r chi.Router) {
		r.Get("/", h.listForms)
		r.Post("/", h.createForm)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", h.getForm)
			r.Put("/", h.replaceForm)
			r.Delete("/", h.deleteForm)
		})
	})
}

// MountClient registers the read-only routes for active forms under basePath.
func (h *Handler) MountClient(router chi.Router, basePath string) {
	path := strings.TrimSpace(basePath)
	if path == "" {
		path = "/api/client/forms"
	}

	router.Route(path, func(r chi.Router) {
		r.Get("/", h.listActiveForms)
		r.Get("/{slug}", h.getActiveForm)
	})
}

func (h *Handler) listForms(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r)
	forms, total, err := h.editor.List(r.Context(), ListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(forms))
	for _, entity := range forms {
		items = append(items, entity.ToSummaryDTO())
	}
	httpx.JSON(w, http.StatusOK, httpx.Paginated(page, total, items))
}

func (h *Handler) createForm(w http.ResponseWriter, r *http.Request) {
	var payload FormInput
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	entity, err := h.editor.Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": entity.ToDTO()})
}

func (h *Handler) getForm(w http.ResponseWriter, r *http.Request) {
	entity, err := h.editor.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entity.ToDTO()})
}

func (h *Handler) replaceForm(w http.ResponseWriter, r *http.Request) {
	var payload FormInput
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	entity, err := h.editor.Replace(r.Context(), chi.URLParam(r, "slug"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entity.ToDTO()})
}

func (h *Handler) deleteForm(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.Delete(r.Context(), chi.URLParam(r, "slug")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActiveForms(w http.ResponseWriter, r *http.Request) {
	forms, _, err := h.editor.List(r.Context(), ListFilter{ActiveOnly: true})
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(forms))
	for _, entity := range forms {
		items = append(items, entity.ToSummaryDTO())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) getActiveForm(w http.ResponseWriter, r *http.Request) {
	entity, err := h.editor.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !entity.IsActive {
		httpx.Error(w, http.StatusNotFound, "form not found")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entity.ToDTO()})
}

func writeError(w http.ResponseWriter, err error) {
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		httpx.FieldErrors(w, http.StatusBadRequest, inputErr.Fields)
	case IsNotFound(err):
		httpx.Error(w, http.StatusNotFound, "form not found")
	case errors.Is(err, ErrConflict):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		slog.Error("form request failed", "err", err)
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}
