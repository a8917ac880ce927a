// Package services implements the use cases of custos on top of the
// spreadsheet engine in internal/dataprocessing.
//
// AnalysisService ingests uploaded workbooks, keeps them in a
// storage.AnalysisStore and serves the derived views. Every read recomputes
// aggregates from the stored dataset, so a rescaled row shows up in all views
// at once. Writes to the same analysis are serialised by a per-id lock, which
// keeps a concurrent rename from overwriting a rescale and vice versa.
//
// Errors keep their origin: engine errors (dataprocessing.ErrSchema,
// ErrValidation, ErrNotFound) and store errors (storage.ErrNotFound) pass
// through wrapped, and the HTTP layer maps them to problem responses.
//
// HealthService backs the liveness, readiness and version endpoints.
package services
