package codec

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	apperrors "sheetsplit/internal/errors"
	"sheetsplit/internal/table"
)

// DefaultSheet names the sheet written when the caller gives none.
const DefaultSheet = "Sheet1"

// XLSX is the excelize-backed workbook codec.
type XLSX struct{}

// NewXLSX creates the workbook codec.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Decode reads the first sheet of the workbook at path. Only populated cells
// are kept, so a row with gaps is shorter than its last column index.
func (x *XLSX) Decode(path string) (table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDecodeError("cannot open file", err)
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, apperrors.NewDecodeError("not a valid workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewDecodeError("not a valid workbook", fmt.Errorf("no sheets")).WithContext("path", path)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, apperrors.NewDecodeError("cannot read sheet "+sheets[0], err).WithContext("path", path)
	}
	defer rows.Close()

	t := table.Table{}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, apperrors.NewDecodeError("cannot read sheet "+sheets[0], err).WithContext("path", path)
		}
		t = append(t, populated(cols))
	}
	if err := rows.Error(); err != nil {
		return nil, apperrors.NewDecodeError("cannot read sheet "+sheets[0], err).WithContext("path", path)
	}

	return t, nil
}

// Encode writes t as a single-sheet workbook. Every cell is stored as text;
// empty cells are left unset. Empty cells and empty rows at the end of the
// table are therefore not restored by Decode.
func (x *XLSX) Encode(path, sheet string, t table.Table) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if current := f.GetSheetName(0); current != sheet {
		if err := f.SetSheetName(current, sheet); err != nil {
			return apperrors.NewEncodeError("invalid sheet name", err).WithContext("sheet", sheet)
		}
	}

	for r, row := range t {
		for c, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return apperrors.NewEncodeError("cannot write workbook", err).WithContext("path", path)
			}
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return apperrors.NewEncodeError("cannot write workbook", err).WithContext("path", path)
			}
		}
	}

	// f.SaveAs rejects extensions other than the xlsx family, so write
	// through an explicit file.
	out, err := os.Create(path)
	if err != nil {
		return apperrors.NewEncodeError("cannot create file", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		out.Close()
		return apperrors.NewEncodeError("cannot write workbook", err).WithContext("path", path)
	}
	if err := out.Close(); err != nil {
		return apperrors.NewEncodeError("cannot write workbook", err).WithContext("path", path)
	}
	return nil
}
