package codec

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"

	apperrors "sheetsplit/internal/errors"
	"sheetsplit/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV reads and writes comma-separated files. A UTF-8 BOM is written so
// Excel detects the encoding, and stripped on read.
type CSV struct {
	Comma rune
}

// NewCSV creates a comma-separated codec.
func NewCSV() *CSV {
	return &CSV{Comma: ','}
}

// Decode reads every record of the file. Empty fields are dropped to match
// workbook decoding; a line holding only "" is an empty row.
func (c *CSV) Decode(path string) (table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDecodeError("cannot open file", err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = c.Comma
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewDecodeError("malformed csv", err).WithContext("path", path)
	}

	t := make(table.Table, 0, len(records))
	for _, rec := range records {
		t = append(t, populated(rec))
	}
	return t, nil
}

// Encode writes t to path, one record per row. The sheet name is ignored.
// csv.Reader skips blank lines, so an empty row is written as a single quoted
// empty field.
func (c *CSV) Encode(path, _ string, t table.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewEncodeError("cannot create file", err)
	}

	if err := c.write(file, t); err != nil {
		_ = file.Close()
		return apperrors.NewEncodeError("cannot write csv", err).WithContext("path", path)
	}

	if err := file.Close(); err != nil {
		return apperrors.NewEncodeError("cannot write csv", err).WithContext("path", path)
	}
	return nil
}

func (c *CSV) write(w io.Writer, t table.Table) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(utf8BOM); err != nil {
		return err
	}

	writer := csv.NewWriter(bw)
	writer.Comma = c.Comma
	for _, row := range t {
		if len(row) == 0 || (len(row) == 1 && row[0] == "") {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return err
			}
			if _, err := bw.WriteString("\"\"\n"); err != nil {
				return err
			}
			continue
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return bw.Flush()
}
