package entries

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/formforge/formforge/internal/errs"
)

// WriteCSV serializes the header and row stream to w as UTF-16 (little
// endian, with BOM) delimiter-separated text with CRLF line endings. The
// encoding is a compatibility contract with spreadsheet applications and
// existing downstream consumers; do not switch it to UTF-8.
func WriteCSV(w io.Writer, header []string, rows *RowIter, delimiter rune) error {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	tw := transform.NewWriter(w, enc)

	cw := csv.NewWriter(tw)
	cw.Comma = delimiter
	cw.UseCRLF = true

	if err := cw.Write(header); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write csv header", err)
	}
	for rows.Next() {
		if err := cw.Write(rows.Row()); err != nil {
			return errs.Wrap(errs.ErrKindQueryFailed, "write csv row", err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "flush csv", err)
	}
	if err := tw.Close(); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "finish csv encoding", err)
	}
	return nil
}

// ExportFilename names a download for a form export, e.g.
// "contact-us-20260615-120000.csv".
func ExportFilename(slug, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", slug, now.Format("20060102-150405"), ext)
}
