// Package table holds the in-memory row/column model used by the pipeline
// together with the two pure functions that operate on it.
//
// # Model
//
// A Table is an ordered list of Rows and a Row is an ordered list of text cells.
// There is no schema: rows may have different lengths and column position is the
// only column identity. Every value is text.
//
// # Transforms
//
//	expanded := table.Split(raw, ".")   // append the parts of column 0
//	counts := table.Count(expanded, 1)  // tally columns 1..n
//
// Neither function mutates its input and neither can fail.
package table
