package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// sniffBytes is how much of the file is inspected to pick a delimiter.
const sniffBytes = 4096

// ReadCSV decodes comma, semicolon or tab separated text. A UTF-8 or UTF-16
// BOM is honoured and stripped; invalid UTF-8 becomes U+FFFD.
func ReadCSV(r io.Reader) (core.Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	br := bufio.NewReaderSize(decoded, sniffBytes)

	head, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return core.Table{}, fmt.Errorf("invalid csv: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid csv: %w", err)
	}
	return newTable(records)
}

// sniffDelimiter counts candidate separators outside quotes on the first
// line and picks the most frequent. Comma wins ties.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexAny(head, "\r\n"); i >= 0 {
		head = head[:i]
	}

	counts := map[byte]int{}
	inQuotes := false
	for _, b := range head {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case !inQuotes && (b == ',' || b == ';' || b == '\t'):
			counts[b]++
		}
	}

	best := byte(',')
	for _, c := range []byte{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return rune(best)
}
