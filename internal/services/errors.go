package services

import "errors"

// Analysis service errors
var (
	// Input errors
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyName      = errors.New("analysis name must not be empty")
	ErrEmptyUpload    = errors.New("uploaded file is empty")
	ErrUploadTooLarge = errors.New("payload too large")

	// Lookup errors
	ErrAccountNotFound = errors.New("account not found")

	// Export errors
	ErrExportFailed = errors.New("workbook export failed")
)
