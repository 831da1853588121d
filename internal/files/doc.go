// Package files resolves request paths against the data directory and lists
// the spreadsheets found there.
package files
