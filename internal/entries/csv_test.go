package entries_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/formforge/formforge/internal/entries"
	"github.com/formforge/formforge/internal/fields"
	"github.com/formforge/formforge/internal/schema"
)

func openRows(t *testing.T, fx *fixture, crit entries.Criteria) *entries.RowIter {
	t.Helper()
	it, err := entries.NewEngine(fx.form, fx.reg, fx.store).Rows(context.Background(), crit)
	require.NoError(t, err)
	t.Cleanup(it.Close)
	return it
}

func decodeUTF16(t *testing.T, raw []byte) string {
	t.Helper()
	dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	out, err := dec.Bytes(raw)
	require.NoError(t, err)
	return string(out)
}

func TestWriteCSV_UTF16Encoding(t *testing.T) {
	fx := newFixture(t,
		schema.Field{Label: "Name", FieldType: fields.Text},
		schema.Field{Label: "Age", FieldType: fields.Integer},
	)
	fx.submit(t, time.Now(), map[string]string{"name": "Ada", "age": "30"})

	var buf bytes.Buffer
	err := entries.WriteCSV(&buf, []string{"Name", "Age"}, openRows(t, fx, exportAll(fx)), ',')
	require.NoError(t, err)

	assert.Equal(t, "Name,Age\r\nAda,30\r\n", decodeUTF16(t, buf.Bytes()))
}

func TestWriteCSV_ConfigurableDelimiter(t *testing.T) {
	fx := newFixture(t,
		schema.Field{Label: "Name", FieldType: fields.Text},
		schema.Field{Label: "Age", FieldType: fields.Integer},
	)
	fx.submit(t, time.Now(), map[string]string{"name": "Ada", "age": "30"})

	var buf bytes.Buffer
	err := entries.WriteCSV(&buf, []string{"Name", "Age"}, openRows(t, fx, exportAll(fx)), ';')
	require.NoError(t, err)

	assert.Equal(t, "Name;Age\r\nAda;30\r\n", decodeUTF16(t, buf.Bytes()))
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "contact-us-20260615-120000.csv", entries.ExportFilename("contact-us", "csv", now))
}

func TestWriteXLSX_ProducesWorkbook(t *testing.T) {
	fx := newFixture(t,
		schema.Field{Label: "Name", FieldType: fields.Text},
		schema.Field{Label: "Born", FieldType: fields.Date},
	)
	fx.submit(t, time.Now(), map[string]string{"name": "Ada", "born": "1815-12-10"})

	var buf bytes.Buffer
	err := entries.WriteXLSX(&buf, "Test Form", []string{"Name", "Born"},
		openRows(t, fx, exportAll(fx)), map[int]bool{1: true})
	require.NoError(t, err)
	// XLSX files are zip archives.
	assert.Equal(t, []byte{'P', 'K'}, buf.Bytes()[:2])
}
