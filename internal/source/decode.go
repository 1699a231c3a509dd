package source

// decode.go turns an uploaded payload into a grid of cells.
//
// CSV exports from the ticketing platform come in two flavours depending on
// the operator's locale: comma separated, or semicolon separated with a
// UTF-8 BOM when saved from a French spreadsheet. Both are accepted:
//
//   - The BOM is stripped before parsing
//   - Invalid UTF-8 sequences are replaced with U+FFFD
//   - The delimiter is the one of ',' and ';' that occurs most often in the
//     first non-empty line, outside quotes
//
// XLSX files are read from their first sheet.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// readCSV parses a delimited payload. Rows may have differing lengths.
func readCSV(data []byte) ([][]string, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, byteOrderMark))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("open xlsx: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("open xlsx: read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// detectDelimiter picks ';' when it outnumbers ',' on the first non-empty
// line. Quoted sections are ignored.
func detectDelimiter(data []byte) rune {
	var line []byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			line, data = data, nil
		} else {
			line, data = data[:i], data[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			break
		}
	}

	var commas, semicolons int
	inQuotes := false
	for _, b := range line {
		switch b {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				commas++
			}
		case ';':
			if !inQuotes {
				semicolons++
			}
		}
	}
	if semicolons > commas {
		return ';'
	}
	return ','
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
