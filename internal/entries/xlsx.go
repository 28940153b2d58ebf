package entries

import (
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/formforge/formforge/internal/errs"
	"github.com/formforge/formforge/internal/fields"
)

// XLSXDateLayout is the fixed display format for date and datetime cells.
const XLSXDateLayout = "01/02/2006 15:04:05"

// WriteXLSX serializes the header and row stream to w as a spreadsheet with
// one sheet named after the form: first row headers, subsequent rows data.
// Columns listed in dateCols (by row index) are rewritten from storage form
// into XLSXDateLayout with any timezone component stripped.
func WriteXLSX(w io.Writer, sheet string, header []string, rows *RowIter, dateCols map[int]bool) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "name sheet", err)
	}

	if err := setRow(f, sheet, 1, header, nil); err != nil {
		return err
	}
	n := 2
	for rows.Next() {
		if err := setRow(f, sheet, n, rows.Row(), dateCols); err != nil {
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write spreadsheet", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, row []string, dateCols map[int]bool) error {
	cells := make([]any, len(row))
	for i, v := range row {
		if dateCols[i] {
			cells[i] = formatDateCell(v)
		} else {
			cells[i] = v
		}
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "compute cell name", err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return errs.Wrap(errs.ErrKindQueryFailed, "write sheet row", err)
	}
	return nil
}

// formatDateCell re-renders a stored date, datetime, or entry-timestamp
// value in the fixed display layout. Unparseable values pass through.
func formatDateCell(v string) string {
	layouts := []string{
		EntryTimeLayout,
		fields.DateLayout,
		time.RFC3339,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			// Formatting drops any timezone component.
			return t.Format(XLSXDateLayout)
		}
	}
	return v
}

// sheetName trims a form title to the spreadsheet 31-character sheet name
// limit and replaces characters sheets cannot contain.
func sheetName(title string) string {
	if title == "" {
		return "Entries"
	}
	out := make([]rune, 0, len(title))
	for _, r := range title {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			out = append(out, ' ')
		default:
			out = append(out, r)
		}
		if len(out) == 31 {
			break
		}
	}
	return string(out)
}
