// Package http implements the REST handlers of the sheetsplit service.
//
// Handlers are a thin layer over the services package: they decode and
// validate the request, call the service and render the outcome.
//
// # Pipeline results
//
// Every pipeline request answers with the Result JSON. The HTTP status follows
// the result status:
//
//	success  200 OK
//	warning  409 Conflict
//	failure  422 Unprocessable Entity
//
// Unknown sessions, rejected paths and malformed bodies are answered with
// RFC 7807 problem details by errors.ErrorHandler.
package http
