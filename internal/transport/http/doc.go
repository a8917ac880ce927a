// Package http implements the HTTP handlers of custos.
//
// Handlers stay thin: they decode and validate requests against the
// contracts in pkg/contracts/api/v1, call a service and render the result
// with go-chi/render. Every failure goes through errors.ErrorHandler, which
// turns it into an RFC 7807 problem response.
//
// Routes mounted under /api:
//
//	GET    /analyses                          recent analyses
//	POST   /analyses                          upload a workbook (multipart "file", optional "name")
//	GET    /analyses/{id}                     aggregate views
//	PATCH  /analyses/{id}                     rename
//	DELETE /analyses/{id}                     delete with all rows
//	GET    /analyses/{id}/rows                main table with row percentages
//	POST   /analyses/{id}/rows/rescale        set a row's total
//	GET    /analyses/{id}/accounts/{account}  account drill-down
//	GET    /analyses/{id}/export              rebuilt xlsx workbook
//	GET    /health, /health/ready, /health/live, /version
package http
