package codec

import (
	"path/filepath"
	"strings"

	"sheetsplit/internal/table"
)

// Codec reads and writes a single-sheet tabular resource.
type Codec interface {
	// Decode reads every row of the first sheet as text.
	Decode(path string) (table.Table, error)
	// Encode writes t to path, replacing any existing file. Formats without
	// sheets ignore the sheet name.
	Encode(path, sheet string, t table.Table) error
}

// Registry selects a Codec by file extension.
type Registry struct {
	codecs   map[string]Codec
	fallback Codec
}

// NewRegistry returns a registry with the xlsx and csv codecs installed.
// Unknown extensions use xlsx.
func NewRegistry() *Registry {
	xlsx := NewXLSX()
	r := &Registry{
		codecs:   make(map[string]Codec),
		fallback: xlsx,
	}
	for _, ext := range []string{".xlsx", ".xlsm", ".xltx", ".xltm"} {
		r.Register(ext, xlsx)
	}
	r.Register(".csv", NewCSV())
	return r
}

// Register installs c for ext (with or without the leading dot).
func (r *Registry) Register(ext string, c Codec) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.codecs[ext] = c
}

// ForPath returns the codec for path's extension.
func (r *Registry) ForPath(path string) Codec {
	if c, ok := r.codecs[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return r.fallback
}

// Decode dispatches to the codec for path.
func (r *Registry) Decode(path string) (table.Table, error) {
	return r.ForPath(path).Decode(path)
}

// Encode dispatches to the codec for path.
func (r *Registry) Encode(path, sheet string, t table.Table) error {
	return r.ForPath(path).Encode(path, sheet, t)
}

// populated keeps the non-empty cells of a decoded record in column order.
// Readers pad gaps with empty strings; a row holds only the cells present.
func populated(cells []string) table.Row {
	row := make(table.Row, 0, len(cells))
	for _, cell := range cells {
		if cell != "" {
			row = append(row, cell)
		}
	}
	return row
}
