// Package source reads depositor rows from uploaded ticketing exports.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ALPE-Plaisance-du-Touch/Gestionnaire-de-Bourse-ALPE-sub000/internal/core"
)

// MaxFileSize is the largest accepted upload (20MB).
var MaxFileSize int64 = 20 * 1024 * 1024

// MaxHeaderSearchRows is the number of leading rows scanned for the header.
// Exports often start with a title or a summary block.
var MaxHeaderSearchRows = 20

// ErrUnsupportedType rejects files that are neither CSV nor XLSX.
var ErrUnsupportedType = errors.New("unsupported file type")

// File is an uploaded export. It implements core.PayloadSource.
type File struct {
	name     string
	data     []byte
	format   string
	profiles []core.ColumnProfile
}

// NewFile validates the upload and selects the column profiles to match the
// header with. An empty profile name tries every registered profile.
func NewFile(name string, data []byte, profile string) (*File, error) {
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	if int64(len(data)) > MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes exceeds %d", len(data), MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".txt", ".xlsx":
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedType, ext)
	}

	profiles, err := core.ResolveProfiles(profile)
	if err != nil {
		return nil, err
	}

	return &File{
		name:     filepath.Base(name),
		data:     data,
		format:   ext,
		profiles: profiles,
	}, nil
}

// Describe returns "file:<name>".
func (f *File) Describe() string {
	return "file:" + f.name
}

// Payload returns the original upload for archiving.
func (f *File) Payload() (string, []byte) {
	return f.name, f.data
}

// Fetch decodes the file and maps each data row to canonical fields. The
// event is not used: a file always holds the rows it holds.
func (f *File) Fetch(ctx context.Context, _ core.Event) ([]core.RawRow, error) {
	var (
		records [][]string
		err     error
	)
	if f.format == ".xlsx" {
		records, err = readXLSX(f.data)
	} else {
		records, err = readCSV(f.data)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty file")
	}

	headerRow, idx, err := findHeader(records, f.profiles)
	if err != nil {
		return nil, err
	}

	rows := make([]core.RawRow, 0, len(records)-headerRow-1)
	for i, rec := range records[headerRow+1:] {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isEmptyRow(rec) {
			continue
		}
		values := make(map[core.Field]string, len(idx))
		for field, pos := range idx {
			if pos < len(rec) {
				values[field] = rec[pos]
			}
		}
		rows = append(rows, core.RawRow{
			Number: headerRow + i + 2, // 1-indexed line after the header
			Values: values,
		})
	}
	return rows, nil
}

// findHeader returns the first row, among the leading ones, that a profile
// fully matches. When none does, the closest match decides which columns are
// reported missing.
func findHeader(records [][]string, profiles []core.ColumnProfile) (int, core.HeaderIndex, error) {
	limit := min(MaxHeaderSearchRows, len(records))

	var (
		bestMissing []core.Field
		bestFound   = -1
	)
	for i := 0; i < limit; i++ {
		if isEmptyRow(records[i]) {
			continue
		}
		for _, p := range profiles {
			idx, missing := p.Match(records[i])
			if len(missing) == 0 {
				return i, idx, nil
			}
			if found := len(core.RequiredFields) - len(missing); found > bestFound {
				bestFound = found
				bestMissing = missing
			}
		}
	}

	if bestFound < 0 {
		return 0, nil, errors.New("no header row found")
	}

	cols := make([]string, len(bestMissing))
	for i, f := range bestMissing {
		cols[i] = string(f)
	}
	return 0, nil, &core.MissingColumnsError{Columns: cols}
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
