// Package pipeline drives a table through its five requests:
//
//	Load -> Process -> Save (write, re-read, count) -> SaveCounts
//
// Each request returns a Result carrying a status (success, warning or
// failure), a user-facing message and the stage reached. A warning leaves the
// controller untouched; a failure never discards data produced by an earlier
// stage.
package pipeline
