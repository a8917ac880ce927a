// Package api contains the HTTP request and response contracts of custos.
// Version v1 represents the current stable API version.
package api

// RenameRequest renames an analysis
type RenameRequest struct {
	Name string `json:"name" validate:"required,notblank,max=255"`
}

// RescaleRequest sets a new total for one row. Account narrows the lookup
// when several rows share an id.
type RescaleRequest struct {
	RowID    string   `json:"row_id" validate:"required"`
	Account  string   `json:"account,omitempty" validate:"omitempty,max=255"`
	NewTotal *float64 `json:"new_total" validate:"required"`
}

// UploadForm holds the non-file fields of the multipart upload
type UploadForm struct {
	Name     string `form:"name" validate:"max=255"`
	FileName string `form:"file" validate:"required,filename"`
}
