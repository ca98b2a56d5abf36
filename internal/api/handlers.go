package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/parser"
	"github.com/starford/jotter/internal/query"
	"github.com/starford/jotter/internal/recordservice"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// recordID parses the {id} URL parameter. It writes a 400 and returns false
// when the id is not a positive integer.
func recordID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// ListRecords handles GET /api/records.
//
//	@Summary		List records matching a filter
//	@Tags			records
//	@Produce		json
//	@Param			tag				query		string	false	"Comma separated tags, any one suffices"
//	@Param			tags			query		string	false	"Comma separated tags, all required"
//	@Param			text			query		string	false	"Case-insensitive text fragment"
//	@Param			deleted			query		bool	false	"Only deleted records"
//	@Param			with_deleted	query		bool	false	"Include deleted records"
//	@Param			after			query		string	false	"Created on or after YYYY-MM-DD"
//	@Param			before			query		string	false	"Created before YYYY-MM-DD"
//	@Param			mafter			query		string	false	"Modified on or after YYYY-MM-DD"
//	@Param			mbefore			query		string	false	"Modified before YYYY-MM-DD"
//	@Success		200				{object}	RecordListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	records, err := h.svc.Search(r.Context(), f.Predicate())
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: records, Total: len(records)})
}

// CreateRecord handles POST /api/records. A text/markdown body is imported
// with its frontmatter and inline tags.
//
//	@Summary		Create a record
//	@Tags			records
//	@Accept			json
//	@Accept			text/markdown
//	@Produce		json
//	@Param			body	body		CreateRecordRequest	true	"Record to create"
//	@Success		201		{object}	CreateRecordResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var (
		id  int
		err error
	)
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "text/markdown" {
		body, readErr := io.ReadAll(r.Body)
		if readErr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
			return
		}
		if _, parseErr := parser.Parse(body); parseErr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(parseErr.Error()))
			return
		}
		id, err = h.svc.Import(r.Context(), body)
	} else {
		var req CreateRecordRequest
		if decErr := json.NewDecoder(r.Body).Decode(&req); decErr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
			return
		}
		id, err = h.svc.Add(r.Context(), req.Text, req.Tags)
	}
	if err != nil {
		writeError(w, "create record", err)
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "create record", err)
		return
	}
	w.Header().Set("Location", "/api/records/"+strconv.Itoa(id))
	writeJSON(w, http.StatusCreated, CreateRecordResponse{ID: id, Record: rec})
}

// GetRecord handles GET /api/records/{id}. format=markdown renders the
// record as a Markdown document.
//
//	@Summary		Get a record by id
//	@Tags			records
//	@Produce		json
//	@Produce		text/markdown
//	@Param			id		path		int		true	"Record id"
//	@Param			format	query		string	false	"json or markdown"
//	@Success		200		{object}	models.Record
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(parser.Render(rec))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord handles PUT /api/records/{id}.
//
//	@Summary		Update text, tags or the deleted flag of a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Record id"
//	@Param			body	body		UpdateRecordRequest	true	"Fields to change"
//	@Success		200		{object}	models.Record
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	var req UpdateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Text == nil && req.Tags == nil && req.Deleted == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("nothing to update"))
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "update record", err)
		return
	}
	if req.Text != nil {
		rec.Text = *req.Text
	}
	if req.Tags != nil {
		rec.Tags = models.NormalizeTags(*req.Tags)
	}
	if req.Deleted != nil {
		rec.SetDeleted(*req.Deleted)
	}
	if err := h.svc.Update(r.Context(), rec); err != nil {
		writeError(w, "update record", err)
		return
	}

	rec, err = h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "update record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/records/{id}. By default the record is
// only marked deleted; hard=true removes it.
//
//	@Summary		Delete a record
//	@Tags			records
//	@Param			id		path	int		true	"Record id"
//	@Param			hard	query	bool	false	"Remove instead of marking deleted"
//	@Success		204		"Record deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	hard, _ := strconv.ParseBool(r.URL.Query().Get("hard"))

	var err error
	if hard {
		err = h.svc.Purge(r.Context(), id)
	} else {
		err = h.svc.Delete(r.Context(), id)
	}
	if err != nil {
		writeError(w, "delete record", err)
		return
	}
	slog.Debug("record deleted", slog.Int("id", id), slog.Bool("hard", hard))
	w.WriteHeader(http.StatusNoContent)
}

// RestoreRecord handles POST /api/records/{id}/restore.
func (h *Handler) RestoreRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Undelete(r.Context(), id); err != nil {
		writeError(w, "restore record", err)
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "restore record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Undo handles POST /api/undo.
//
//	@Summary		Revert the most recent change
//	@Tags			records
//	@Produce		json
//	@Success		200	{object}	UndoResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Undo(r.Context())
	if err != nil {
		writeError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Summary: summary})
}
