package table

import (
	"strconv"
	"strings"
)

// DefaultCountFrom skips the composite key in column 0.
const DefaultCountFrom = 1

// Entry is one distinct value and the number of times it was seen.
type Entry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CountMap tallies distinct cell values. Iteration follows first-seen order so
// that rendering the same input always produces the same output.
type CountMap struct {
	order  []string
	counts map[string]int
}

// NewCountMap returns an empty CountMap.
func NewCountMap() *CountMap {
	return &CountMap{counts: make(map[string]int)}
}

// Add increments the count for value.
func (m *CountMap) Add(value string) {
	if _, seen := m.counts[value]; !seen {
		m.order = append(m.order, value)
	}
	m.counts[value]++
}

// Get returns the count for value and whether it was seen.
func (m *CountMap) Get(value string) (int, bool) {
	if m == nil {
		return 0, false
	}
	n, ok := m.counts[value]
	return n, ok
}

// Len returns the number of distinct values.
func (m *CountMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Total returns the sum of all counts.
func (m *CountMap) Total() int {
	if m == nil {
		return 0
	}
	total := 0
	for _, n := range m.counts {
		total += n
	}
	return total
}

// Keys returns the distinct values in first-seen order.
func (m *CountMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Entries returns the tally in first-seen order.
func (m *CountMap) Entries() []Entry {
	if m == nil {
		return []Entry{}
	}
	out := make([]Entry, 0, len(m.order))
	for _, v := range m.order {
		out = append(out, Entry{Value: v, Count: m.counts[v]})
	}
	return out
}

// AsMap returns a plain map copy of the tally.
func (m *CountMap) AsMap() map[string]int {
	out := make(map[string]int, m.Len())
	if m == nil {
		return out
	}
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// Lines renders each entry as "<value>: <count>".
func (m *CountMap) Lines() []string {
	entries := m.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Value + ": " + strconv.Itoa(e.Count)
	}
	return lines
}

// String joins Lines with newlines.
func (m *CountMap) String() string {
	return strings.Join(m.Lines(), "\n")
}

// Table converts the tally into a two-column table (value, count) without a
// header row.
func (m *CountMap) Table() Table {
	entries := m.Entries()
	t := make(Table, len(entries))
	for i, e := range entries {
		t[i] = Row{e.Value, strconv.Itoa(e.Count)}
	}
	return t
}

// Clone returns an independent copy.
func (m *CountMap) Clone() *CountMap {
	out := NewCountMap()
	if m == nil {
		return out
	}
	out.order = append(out.order, m.order...)
	for k, v := range m.counts {
		out.counts[k] = v
	}
	return out
}

// Count tallies every present cell at column index >= start across all rows.
// A negative start is treated as 0.
func Count(t Table, start int) *CountMap {
	if start < 0 {
		start = 0
	}
	m := NewCountMap()
	for _, row := range t {
		for i := start; i < len(row); i++ {
			m.Add(row[i])
		}
	}
	return m
}
