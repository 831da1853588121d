package table

// Row is an ordered sequence of text cells.
type Row []string

// Table is an ordered sequence of rows. Rows may differ in length.
type Table []Row

// Len returns the number of cells in the row.
func (r Row) Len() int {
	return len(r)
}

// Cell returns the cell at index i and whether it is present.
func (r Row) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r) {
		return "", false
	}
	return r[i], true
}

// Clone returns a copy of the row that shares no storage with r.
func (r Row) Clone() Row {
	if r == nil {
		return Row{}
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// FromRecords builds a table from raw string records, copying every record.
func FromRecords(records [][]string) Table {
	t := make(Table, len(records))
	for i, rec := range records {
		t[i] = Row(rec).Clone()
	}
	return t
}

// Records returns the table as [][]string for codecs and JSON responses.
func (t Table) Records() [][]string {
	out := make([][]string, len(t))
	for i, r := range t {
		out[i] = []string(r.Clone())
	}
	return out
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, r := range t {
		out[i] = r.Clone()
	}
	return out
}

// IsEmpty reports whether the table has no rows.
func (t Table) IsEmpty() bool {
	return len(t) == 0
}

// CellCount returns the number of present cells across all rows.
func (t Table) CellCount() int {
	n := 0
	for _, r := range t {
		n += len(r)
	}
	return n
}

// Width returns the length of the longest row.
func (t Table) Width() int {
	w := 0
	for _, r := range t {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Equal reports whether two tables hold the same rows and cells.
// A nil row and an empty row compare equal.
func (t Table) Equal(other Table) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if len(t[i]) != len(other[i]) {
			return false
		}
		for j := range t[i] {
			if t[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}
