package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// ReadXLSX decodes the active worksheet of a workbook. Merged ranges are
// filled with their top-left value so grouped brand or category columns
// reach every row they span.
func ReadXLSX(r io.Reader) (core.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return core.Table{}, ErrEmptyFile
		}
		sheet = list[0]
	}

	grid, err := filledGrid(f, sheet)
	if err != nil {
		return core.Table{}, fmt.Errorf("invalid xlsx: sheet %q: %w", sheet, err)
	}
	return newTable(grid)
}

func filledGrid(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, err
	}
	for _, mc := range merges {
		startCol, startRow, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		val := strings.TrimSpace(mc.GetCellValue())

		// coordinates are 1-based
		for r := startRow - 1; r < endRow; r++ {
			for len(rows) <= r {
				rows = append(rows, nil)
			}
			for len(rows[r]) < endCol {
				rows[r] = append(rows[r], "")
			}
			for c := startCol - 1; c < endCol; c++ {
				rows[r][c] = val
			}
		}
	}

	return rows, nil
}
