package httpapi

import (
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/forms"
	"github.com/formforge/formforge/internal/mailer"
	"github.com/formforge/formforge/internal/schema"
)

type formPayload struct {
	Title         string     `json:"title"`
	Intro         string     `json:"intro"`
	ButtonText    string     `json:"button_text"`
	Response      string     `json:"response"`
	Status        int        `json:"status"`
	PublishDate   *time.Time `json:"publish_date"`
	ExpiryDate    *time.Time `json:"expiry_date"`
	LoginRequired bool       `json:"login_required"`
	SendEmail     bool       `json:"send_email"`
	EmailFrom     string     `json:"email_from"`
	EmailCopies   string     `json:"email_copies"`
	EmailSubject  string     `json:"email_subject"`
	EmailMessage  string     `json:"email_message"`
}

func (p *formPayload) apply(f *schema.Form) error {
	if p.Title == "" || len(p.Title) > schema.TitleMaxLength {
		return errs.Newf(errs.ErrKindInvalidInput, "title must be 1-%d characters", schema.TitleMaxLength)
	}
	f.Title = p.Title
	f.Intro = p.Intro
	f.ButtonText = p.ButtonText
	f.Response = p.Response
	f.Status = p.Status
	if f.Status == 0 {
		f.Status = schema.StatusDraft
	}
	f.PublishDate = p.PublishDate
	f.ExpiryDate = p.ExpiryDate
	f.LoginRequired = p.LoginRequired
	f.SendEmail = p.SendEmail
	f.EmailFrom = p.EmailFrom
	f.EmailCopies = p.EmailCopies
	f.EmailSubject = p.EmailSubject
	f.EmailMessage = p.EmailMessage
	return nil
}

type fieldPayload struct {
	Label           string `json:"label"`
	FieldType       int    `json:"field_type"`
	Required        bool   `json:"required"`
	Visible         *bool  `json:"visible"`
	Choices         string `json:"choices"`
	Default         string `json:"default"`
	PlaceholderText string `json:"placeholder_text"`
	HelpText        string `json:"help_text"`
	Order           *int   `json:"order"`
}

// requireStaff gates the schema-management and entries surfaces.
func (s *Server) requireStaff(w http.ResponseWriter, r *http.Request) bool {
	if !s.cfg.Viewer(r).IsStaff {
		writeError(w, errs.New(errs.ErrKindPermissionDenied, "staff access required"))
		return false
	}
	return true
}

func (s *Server) loadForm(w http.ResponseWriter, r *http.Request) (*schema.Form, bool) {
	form, err := s.cfg.Schemas.GetFormBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return form, true
}

// --- schema management ---

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	list, err := s.cfg.Schemas.ListForms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	var p formPayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, err)
		return
	}
	var form schema.Form
	if err := p.apply(&form); err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Schemas.CreateForm(r.Context(), &form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, form)
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	var p formPayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := p.apply(form); err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Schemas.UpdateForm(r.Context(), form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Schemas.DeleteForm(r.Context(), form.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	var p fieldPayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, err)
		return
	}
	fd := schema.Field{FormID: form.ID}
	if err := s.applyFieldPayload(&fd, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Schemas.CreateField(r.Context(), &fd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fd)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "invalid field id"))
		return
	}
	fd, found := form.FieldByID(fieldID)
	if !found {
		writeError(w, errs.Newf(errs.ErrKindNotFound, "field %d", fieldID))
		return
	}
	var p fieldPayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := s.applyFieldPayload(&fd, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := s.cfg.Schemas.UpdateField(r.Context(), &fd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fd)
}

func (s *Server) handleDeleteField(w http.ResponseWriter, r *http.Request) {
	if !s.requireStaff(w, r) {
		return
	}
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	fieldID, err := strconv.ParseInt(chi.URLParam(r, "fieldID"), 10, 64)
	if err != nil {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "invalid field id"))
		return
	}
	if err := s.cfg.Schemas.DeleteField(r.Context(), form.ID, fieldID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyFieldPayload(fd *schema.Field, p *fieldPayload) error {
	if p.Label == "" || len(p.Label) > schema.LabelMaxLength {
		return errs.Newf(errs.ErrKindInvalidInput, "label must be 1-%d characters", schema.LabelMaxLength)
	}
	if _, err := s.cfg.Registry.Resolve(p.FieldType); err != nil {
		return err
	}
	fd.Label = p.Label
	fd.FieldType = p.FieldType
	fd.Required = p.Required
	fd.Visible = true
	if p.Visible != nil {
		fd.Visible = *p.Visible
	}
	fd.Choices = p.Choices
	fd.Default = p.Default
	fd.PlaceholderText = p.PlaceholderText
	fd.HelpText = p.HelpText
	fd.Order = -1
	if p.Order != nil {
		fd.Order = *p.Order
	}
	return nil
}

// --- public form surface ---

type controlView struct {
	Slug        string          `json:"slug"`
	Label       string          `json:"label"`
	Type        string          `json:"type"`
	Required    bool            `json:"required"`
	Choices     []schema.Choice `json:"choices,omitempty"`
	Initial     string          `json:"initial,omitempty"`
	Placeholder string          `json:"placeholder,omitempty"`
	HelpText    string          `json:"help_text,omitempty"`
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	if !form.Published(s.cfg.Viewer(r), time.Now()) {
		writeError(w, errs.Newf(errs.ErrKindNotFound, "form %q", form.Slug))
		return
	}

	bound, err := forms.Build(form, s.cfg.Registry, forms.Options{})
	if err != nil {
		writeError(w, err)
		return
	}
	var controls []controlView
	for _, c := range bound.Controls() {
		controls = append(controls, controlView{
			Slug:        c.Field.Slug,
			Label:       c.Field.Label,
			Type:        c.Descriptor.Name,
			Required:    c.Field.Required,
			Choices:     c.Choices,
			Initial:     c.Initial,
			Placeholder: c.Field.PlaceholderText,
			HelpText:    c.Field.HelpText,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":       form.Title,
		"slug":        form.Slug,
		"intro":       form.Intro,
		"button_text": form.ButtonText,
		"fields":      controls,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form, ok := s.loadForm(w, r)
	if !ok {
		return
	}
	if !form.Published(s.cfg.Viewer(r), time.Now()) {
		writeError(w, errs.Newf(errs.ErrKindNotFound, "form %q", form.Slug))
		return
	}

	opts := forms.Options{}
	mediatype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediatype == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid multipart body", err))
			return
		}
		files, closeFiles, err := openUploads(r.MultipartForm)
		if err != nil {
			writeError(w, err)
			return
		}
		defer closeFiles()
		opts.Files = files
	} else if err := r.ParseForm(); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid form body", err))
		return
	}
	opts.Data = r.PostForm

	bound, err := forms.Build(form, s.cfg.Registry, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if !bound.Validate() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": bound.Errors()})
		return
	}

	now := time.Now().UTC()
	entry, err := bound.Save(r.Context(), s.cfg.Entries, s.cfg.Blobs, s.cfg.Bucket, now)
	if err != nil {
		writeError(w, err)
		return
	}

	if s.cfg.Mailer != nil {
		items := submissionItems(form, bound.CleanedData())
		if err := s.cfg.Mailer.SendForEntry(r.Context(), form, bound.EmailRecipient(), items, now); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"entry_id": entry.ID,
		"response": form.Response,
	})
}

// submissionItems pairs visible field labels with their cleaned values
// for the notification email.
func submissionItems(form *schema.Form, cleaned map[string]string) []mailer.Item {
	var items []mailer.Item
	for _, fd := range form.VisibleFields() {
		items = append(items, mailer.Item{Label: fd.Label, Value: cleaned[fd.Slug]})
	}
	return items
}

func openUploads(mf *multipart.Form) (map[string]*forms.Upload, func(), error) {
	files := make(map[string]*forms.Upload)
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for slug, headers := range mf.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read upload", err)
		}
		opened = append(opened, f)
		files[slug] = &forms.Upload{
			Filename:    fh.Filename,
			Content:     f,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		}
	}
	return files, closeAll, nil
}
