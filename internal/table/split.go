package table

import "strings"

// DefaultDelimiter separates the parts of the composite key in column 0.
const DefaultDelimiter = "."

// Split returns a new table in which every non-empty row keeps all of its cells
// and gains one trailing cell per fragment of its first cell split on delimiter.
// Empty fragments from leading, trailing or repeated delimiters are kept.
// Rows without cells are copied unchanged. The input is never modified.
func Split(t Table, delimiter string) Table {
	out := make(Table, len(t))
	for i, row := range t {
		out[i] = SplitRow(row, delimiter)
	}
	return out
}

// SplitRow applies the split to a single row.
func SplitRow(row Row, delimiter string) Row {
	if len(row) == 0 {
		return Row{}
	}

	parts := splitLiteral(row[0], delimiter)
	out := make(Row, 0, len(row)+len(parts))
	out = append(out, row...)
	out = append(out, parts...)
	return out
}

// splitLiteral splits on the literal delimiter. An empty delimiter yields the
// whole value as one fragment instead of strings.Split's per-rune split.
func splitLiteral(value, delimiter string) []string {
	if delimiter == "" {
		return []string{value}
	}
	return strings.Split(value, delimiter)
}
