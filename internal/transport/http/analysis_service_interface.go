package http

import (
	"context"

	"custos/internal/services"
	api "custos/pkg/contracts/api/v1"
	"custos/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the analysis operations used by the handler
type AnalysisServiceInterface interface {
	Upload(ctx context.Context, in services.UploadInput) (*domain.Analysis, error)
	List(ctx context.Context) (api.AnalysisList, error)
	Views(ctx context.Context, id string) (api.AnalysisViews, error)
	Rows(ctx context.Context, id string) (api.RowsTable, error)
	AccountDetail(ctx context.Context, id, account string) (api.AccountDetail, error)
	Rename(ctx context.Context, id, name string) (*domain.Analysis, error)
	Delete(ctx context.Context, id string) error
	Rescale(ctx context.Context, id string, ref domain.RowRef, newTotal float64) (api.AnalysisViews, error)
	Export(ctx context.Context, id string) (*services.ExportFile, error)
}

var _ AnalysisServiceInterface = (*services.AnalysisService)(nil)
