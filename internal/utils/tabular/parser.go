// Package tabular parses admin-supplied delimited text into rows of fields.
//
// The standard encoding/csv reader is deliberately not used here: uploaded
// portal files are hand-edited and frequently ragged (uneven field counts,
// stray quotes mid-field), and the pipeline needs every row delivered so the
// validator can report defects per row instead of the whole file dying on the
// first malformed line.
package tabular

import "strings"

const delimiter = ','

// Parse splits raw delimited text into rows of field strings.
//
// A quoted field is a single token even when it contains the delimiter or a
// line break; an embedded quote is written as two consecutive quote
// characters inside a quoted field. Lines only end a row while quoting is
// balanced. Blank lines and empty trailing content produce no row.
func Parse(text string) [][]string {
	var rows [][]string
	var row []string
	var field strings.Builder
	inQuotes := false
	fieldHasText := false

	endField := func() {
		row = append(row, field.String())
		field.Reset()
		fieldHasText = false
	}
	endRow := func() {
		if len(row) == 0 && field.Len() == 0 && !fieldHasText {
			return // blank line
		}
		endField()
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if inQuotes {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else if field.Len() == 0 && !fieldHasText {
				inQuotes = true
				fieldHasText = true
			} else {
				// stray quote mid-field, keep it literally
				field.WriteByte('"')
			}
		case c == delimiter && !inQuotes:
			endField()
			fieldHasText = true // a delimiter implies a following (possibly empty) field
		case c == '\r' && !inQuotes && i+1 < len(text) && text[i+1] == '\n':
			// CRLF handled by the LF branch
		case c == '\n' && !inQuotes:
			endRow()
		default:
			field.WriteByte(c)
		}
	}
	endRow()
	return rows
}
