package table

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX loads a worksheet whose first row is the header. If sheet is empty
// the first sheet of the workbook is used.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("read %s: workbook has no sheets", filepath.Base(path))
	}
	target := sheets[0]
	if sheet != "" {
		target = ""
		for _, s := range sheets {
			if strings.EqualFold(s, sheet) {
				target = s
				break
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'; available sheets: %s",
				sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	}

	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", target, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: no header row", filepath.Base(path))
	}
	t, err := FromRecords(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}
