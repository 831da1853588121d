// Package cli implements the sheetsplit command line.
//
// Commands:
//
//	run <input> <output>   run every pipeline stage on one file
//	serve                  start the HTTP API
//	history                list recorded requests
//
// Errors returned by commands carry an exit code; see GetExitCode.
package cli
