package domain

import (
	"time"
)

// Analysis is one uploaded spreadsheet and its normalized dataset
type Analysis struct {
	ID         string    `json:"id" db:"id" validate:"required,uuid"`
	Name       string    `json:"name" db:"name" validate:"required,max=255"`
	FileName   string    `json:"file_name" db:"file_name"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	Dataset    *Dataset  `json:"dataset,omitempty" db:"-"`
}

// Summary strips the dataset for list responses
func (a *Analysis) Summary() AnalysisSummary {
	s := AnalysisSummary{
		ID:         a.ID,
		Name:       a.Name,
		FileName:   a.FileName,
		UploadedAt: a.UploadedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Dataset != nil {
		s.RowCount = len(a.Dataset.Rows)
		s.ColumnCount = len(a.Dataset.Schema.DataColumns())
	}
	return s
}

// Clone returns a deep copy
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Dataset = a.Dataset.Clone()
	return &clone
}

// AnalysisSummary is the list view of an analysis
type AnalysisSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	FileName    string    `json:"file_name"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
}
