// Package sheet decodes uploaded pricelists into the rectangular core.Table.
//
// The first row of a file is the header row; every later row is data, blank
// rows included, so row numbers in validation issues line up with the
// spreadsheet the supplier sent.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// DefaultMaxFileSize is used when Read is given no limit.
const DefaultMaxFileSize int64 = 100 << 20

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file: no header row")
)

// Format is a supported upload encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the decoder from the file extension.
func DetectFormat(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// Read decodes an upload named name. At most maxSize bytes are accepted;
// a non-positive maxSize means DefaultMaxFileSize.
func Read(r io.Reader, name string, maxSize int64) (core.Table, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return core.Table{}, err
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return core.Table{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return core.Table{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, maxSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return core.Table{}, ErrEmptyFile
	}

	if format == FormatXLSX {
		return ReadXLSX(bytes.NewReader(data))
	}
	return ReadCSV(bytes.NewReader(data))
}

// newTable splits records into headers and rows. Trailing blank cells are
// dropped from every record.
func newTable(records [][]string) (core.Table, error) {
	if len(records) == 0 {
		return core.Table{}, ErrEmptyFile
	}

	headers := trimTrailingBlank(records[0])
	if len(headers) == 0 {
		return core.Table{}, ErrEmptyFile
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, trimTrailingBlank(rec))
	}
	return core.Table{Headers: headers, Rows: rows}, nil
}

func trimTrailingBlank(rec []string) []string {
	end := len(rec)
	for end > 0 && strings.TrimSpace(rec[end-1]) == "" {
		end--
	}
	return rec[:end]
}
