package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/filestore"
	"github.com/formforge/formforge/internal/filestore/local"
	"github.com/formforge/formforge/internal/httpapi"
	"github.com/formforge/formforge/internal/logger"
	"github.com/formforge/formforge/internal/schema"
	"github.com/formforge/formforge/internal/store/memstore"
)

const staffHeader = "X-Test-Staff"

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	blobs, err := local.New(t.TempDir())
	require.NoError(t, err)

	srv := httpapi.NewServer(httpapi.Config{
		Schemas: store,
		Entries: store,
		Blobs:   blobs,
		Bucket:  "uploads",
		Viewer: func(r *http.Request) schema.Viewer {
			return schema.Viewer{IsStaff: r.Header.Get(staffHeader) != ""}
		},
		Log: logger.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url string, body any, staff bool) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if staff {
		req.Header.Set(staffHeader, "1")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func setupForm(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/forms", map[string]any{
		"title":  "Contact Us",
		"status": schema.StatusPublished,
	}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var form schema.Form
	decodeBody(t, resp, &form)

	for _, fd := range []map[string]any{
		{"label": "Name", "field_type": fields.Text, "required": true},
		{"label": "Email", "field_type": fields.Email, "required": true},
	} {
		r := doJSON(t, http.MethodPost, ts.URL+"/forms/"+form.Slug+"/fields", fd, true)
		require.Equal(t, http.StatusCreated, r.StatusCode)
		r.Body.Close()
	}
	return form.Slug
}

func TestStaffGate(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/forms")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFormLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)
	assert.Equal(t, "contact-us", slug)

	// Public detail shows the materialized controls.
	resp, err := http.Get(ts.URL + "/forms/" + slug)
	require.NoError(t, err)
	var detail struct {
		Title  string `json:"title"`
		Fields []struct {
			Slug     string `json:"slug"`
			Type     string `json:"type"`
			Required bool   `json:"required"`
		} `json:"fields"`
	}
	decodeBody(t, resp, &detail)
	assert.Equal(t, "Contact Us", detail.Title)
	require.Len(t, detail.Fields, 2)
	assert.Equal(t, "name", detail.Fields[0].Slug)
	assert.Equal(t, "email", detail.Fields[1].Slug)
}

func TestUnpublishedFormHidden(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/forms", map[string]any{
		"title":  "Secret",
		"status": schema.StatusDraft,
	}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Anonymous viewers get a 404; staff still see it.
	public, err := http.Get(ts.URL + "/forms/secret")
	require.NoError(t, err)
	public.Body.Close()
	assert.Equal(t, http.StatusNotFound, public.StatusCode)

	staff := doJSON(t, http.MethodGet, ts.URL+"/forms/secret", nil, true)
	staff.Body.Close()
	assert.Equal(t, http.StatusOK, staff.StatusCode)
}

func submitEntry(t *testing.T, ts *httptest.Server, slug, name, email string) {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/forms/"+slug, url.Values{
		"name":  {name},
		"email": {email},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestSubmitAndListEntries(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)

	submitEntry(t, ts, slug, "Ada", "ada@example.com")
	submitEntry(t, ts, slug, "Grace", "grace@example.com")

	resp := doJSON(t, http.MethodGet, ts.URL+"/forms/"+slug+"/entries", nil, true)
	var result struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	decodeBody(t, resp, &result)

	assert.Equal(t, []string{"Name", "Email"}, result.Columns)
	require.Len(t, result.Rows, 2)
	// Newest first; rows carry a leading entry-id cell.
	assert.Equal(t, []string{"2", "Grace", "grace@example.com"}, result.Rows[0])
	assert.Equal(t, []string{"1", "Ada", "ada@example.com"}, result.Rows[1])
}

func TestSubmitValidationErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)

	resp, err := http.PostForm(ts.URL+"/forms/"+slug, url.Values{
		"email": {"not-an-address"},
	})
	require.NoError(t, err)
	var result struct {
		Errors map[string]string `json:"errors"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, result.Errors, "name")
	assert.Contains(t, result.Errors, "email")
}

func TestFilteredEntries(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)

	submitEntry(t, ts, slug, "Ada", "ada@example.com")
	submitEntry(t, ts, slug, "Grace", "grace@example.com")

	params := url.Values{
		"name_export": {"on"},
		"name_filter": {strconv.Itoa(int(entries.FilterContains))},
		"name_value":  {"ada"},
	}
	resp := doJSON(t, http.MethodGet, ts.URL+"/forms/"+slug+"/entries?"+params.Encode(), nil, true)
	var result struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	decodeBody(t, resp, &result)

	assert.Equal(t, []string{"Name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Ada", result.Rows[0][1])
}

func TestCSVExport(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)
	submitEntry(t, ts, slug, "Ada", "ada@example.com")

	resp := doJSON(t, http.MethodGet, ts.URL+"/forms/"+slug+"/entries/export?format=csv", nil, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), slug)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".csv")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(raw)
	require.NoError(t, err)
	text := string(decoded)
	assert.Contains(t, text, "Name,Email")
	assert.Contains(t, text, "Ada,ada@example.com")
}

func TestXLSXExport(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)
	submitEntry(t, ts, slug, "Ada", "ada@example.com")

	resp := doJSON(t, http.MethodGet, ts.URL+"/forms/"+slug+"/entries/export?format=xlsx", nil, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// XLSX is a zip container.
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")))
}

func TestDeleteEntries(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)
	submitEntry(t, ts, slug, "Ada", "ada@example.com")

	resp := doJSON(t, http.MethodPost, ts.URL+"/forms/"+slug+"/entries/delete",
		map[string]any{"entry_ids": []int64{1}}, true)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	listing := doJSON(t, http.MethodGet, ts.URL+"/forms/"+slug+"/entries", nil, true)
	var result struct {
		Rows [][]string `json:"rows"`
	}
	decodeBody(t, listing, &result)
	assert.Empty(t, result.Rows)
}

func TestFileUploadAndDownload(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/forms/"+slug+"/fields",
		map[string]any{"label": "Resume", "field_type": fields.File}, true)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "Ada"))
	require.NoError(t, mw.WriteField("email", "ada@example.com"))
	part, err := mw.CreateFormFile("resume", "resume.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	submitResp, err := http.Post(ts.URL+"/forms/"+slug, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer submitResp.Body.Close()
	require.Equal(t, http.StatusCreated, submitResp.StatusCode)

	// The file value is the third stored value of entry 1.
	download := doJSON(t, http.MethodGet, ts.URL+"/files/3", nil, true)
	defer download.Body.Close()
	require.Equal(t, http.StatusOK, download.StatusCode)
	content, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(content))
}

// presignBlobs wraps a store with a backend-style presigner.
type presignBlobs struct {
	filestore.Store
}

func (presignBlobs) PresignGetURL(context.Context, string, string, time.Duration) (string, error) {
	return "https://cdn.example.com/signed/resume.pdf", nil
}

func TestFileDownloadRedirectsWhenPresignable(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	blobs, err := local.New(t.TempDir())
	require.NoError(t, err)

	key := "d1/resume.pdf"
	_, err = blobs.Put(ctx, "uploads", key, bytes.NewReader([]byte("pdf bytes")), -1, "application/pdf")
	require.NoError(t, err)

	entry := &entries.Entry{FormID: 1, EntryTime: time.Now()}
	require.NoError(t, store.CreateEntry(ctx, entry))
	vs := []entries.FieldValue{{EntryID: entry.ID, FieldID: 1, Value: key}}
	require.NoError(t, store.BulkInsertValues(ctx, vs))

	srv := httpapi.NewServer(httpapi.Config{
		Schemas: store,
		Entries: store,
		Blobs:   presignBlobs{blobs},
		Bucket:  "uploads",
		Viewer: func(*http.Request) schema.Viewer {
			return schema.Viewer{IsStaff: true}
		},
		Log: logger.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(fmt.Sprintf("%s/files/%d", ts.URL, vs[0].ID))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://cdn.example.com/signed/resume.pdf", resp.Header.Get("Location"))
}

func TestFileDownloadMissingObject(t *testing.T) {
	ctx := context.Background()
	ts, store := newTestServer(t)

	entry := &entries.Entry{FormID: 1, EntryTime: time.Now()}
	require.NoError(t, store.CreateEntry(ctx, entry))
	vs := []entries.FieldValue{{EntryID: entry.ID, FieldID: 1, Value: "gone/missing.pdf"}}
	require.NoError(t, store.BulkInsertValues(ctx, vs))

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/files/%d", ts.URL, vs[0].ID), nil, true)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	ts, _ := newTestServer(t)
	slug := setupForm(t, ts)

	resp := doJSON(t, http.MethodGet, ts.URL+"/forms/"+slug+"/entries/export?format=pdf", nil, true)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFieldDeleteCompactsOrder(t *testing.T) {
	ts, store := newTestServer(t)
	slug := setupForm(t, ts)

	form, err := store.GetFormBySlug(t.Context(), slug)
	require.NoError(t, err)
	require.Len(t, form.Fields, 2)

	resp := doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/forms/%s/fields/%d", ts.URL, slug, form.Fields[0].ID), nil, true)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	after, err := store.GetFormBySlug(t.Context(), slug)
	require.NoError(t, err)
	require.Len(t, after.Fields, 1)
	assert.Equal(t, 0, after.Fields[0].Order)
}
