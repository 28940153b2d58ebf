package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/schema"
)

// handleEntries runs the filter meta-form over a form's entries and
// returns the matching rows. A bare GET returns every column and row.
func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid form body", err))
		return
	}

	meta := entries.NewEntriesForm(form, s.cfg.Registry, r.Form)
	crit := meta.Criteria()
	crit.FileURL = func(valueID int64) string {
		return fmt.Sprintf("/files/%d", valueID)
	}

	engine := entries.NewEngine(form, s.cfg.Registry, s.cfg.Entries)
	iter, err := engine.Rows(r.Context(), crit)
	if err != nil {
		writeError(w, err)
		return
	}
	defer iter.Close()

	rows := [][]string{}
	for iter.Next() {
		row := make([]string, len(iter.Row()))
		copy(row, iter.Row())
		rows = append(rows, row)
	}
	if err := iter.Err(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"columns": engine.Columns(crit),
		"rows":    rows,
	})
}

// handleExport streams the filtered rows as a CSV or XLSX download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid form body", err))
		return
	}

	format := r.Form.Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, errs.Newf(errs.ErrKindInvalidInput, "unsupported export format %q", format))
		return
	}

	// Export data drops the filter UI params before binding the meta-form.
	data := r.Form
	data.Del("format")

	meta := entries.NewEntriesForm(form, s.cfg.Registry, data)
	crit := meta.Criteria()
	crit.Delimited = true

	engine := entries.NewEngine(form, s.cfg.Registry, s.cfg.Entries)
	header := engine.Columns(crit)
	iter, err := engine.Rows(r.Context(), crit)
	if err != nil {
		writeError(w, err)
		return
	}
	defer iter.Close()

	filename := entries.ExportFilename(form.Slug, format, time.Now())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "xlsx" {
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = entries.WriteXLSX(w, form.Title, header, iter, s.dateColumns(form, crit))
	} else {
		w.Header().Set("Content-Type", "text/csv; charset=utf-16")
		err = entries.WriteCSV(w, header, iter, s.cfg.CSVDelimiter)
	}
	if err != nil {
		// Headers are already gone; all we can do is log.
		s.cfg.Log.ErrorWith("export stream failed", err, map[string]any{"form": form.Slug})
	}
}

// dateColumns marks the output columns that hold date values, so the
// XLSX writer can re-render them as spreadsheet dates.
func (s *Server) dateColumns(form *schema.Form, crit entries.Criteria) map[int]bool {
	cols := make(map[int]bool)
	i := 0
	for _, fd := range form.Fields {
		if !crit.Fields[fd.ID].Export {
			continue
		}
		if s.cfg.Registry.IsDate(fd.FieldType) {
			cols[i] = true
		}
		i++
	}
	if crit.IncludeTime {
		cols[i] = true
	}
	return cols
}

// handleDeleteEntries removes the posted entry ids and their values.
func (s *Server) handleDeleteEntries(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	var payload struct {
		EntryIDs []int64 `json:"entry_ids"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if len(payload.EntryIDs) == 0 {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "no entry ids given"))
		return
	}
	if err := s.cfg.Entries.DeleteEntries(r.Context(), form.ID, payload.EntryIDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// presignTTL bounds how long a redirected download link stays valid.
const presignTTL = 15 * time.Minute

// handleFileDownload serves an uploaded file by its field value id.
// Backends that can presign get a redirect to a time-limited URL; the
// rest are streamed through the handler.
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	if s.cfg.Blobs == nil {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "no file store configured"))
		return
	}
	valueID, err := strconv.ParseInt(chi.URLParam(r, "valueID"), 10, 64)
	if err != nil {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "invalid value id"))
		return
	}

	value, err := s.cfg.Entries.GetValue(r.Context(), valueID)
	if err != nil {
		writeError(w, err)
		return
	}
	if value.Value == "" {
		writeError(w, errs.Newf(errs.ErrKindNotFound, "value %d holds no file", valueID))
		return
	}

	// Resolve metadata first: a missing object is a 404 here, not a
	// redirect to a dead URL or a broken stream.
	info, err := s.cfg.Blobs.Stat(r.Context(), s.cfg.Bucket, value.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	switch url, err := s.cfg.Blobs.PresignGetURL(r.Context(), s.cfg.Bucket, value.Value, presignTTL); {
	case err == nil:
		http.Redirect(w, r, url, http.StatusFound)
		return
	case !errs.IsInvalidInput(err):
		writeError(w, err)
		return
	}

	obj, err := s.cfg.Blobs.Get(r.Context(), s.cfg.Bucket, value.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	_, _ = io.Copy(w, obj)
}
