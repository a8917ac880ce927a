package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"custos/internal/dataprocessing"
	"custos/internal/exporter"
	"custos/internal/infrastructure"
	"custos/internal/storage"
	ws "custos/internal/websocket"
	api "custos/pkg/contracts/api/v1"
	"custos/pkg/contracts/domain"
)

// DefaultRecentLimit is how many analyses List returns when not configured
const DefaultRecentLimit = 10

// Notifier publishes analysis change events. *websocket.Hub satisfies it.
type Notifier interface {
	Broadcast(ctx context.Context, eventType string, data interface{})
}

// UploadInput is one spreadsheet to ingest
type UploadInput struct {
	// Name defaults to FileName when blank
	Name     string
	FileName string
	Reader   io.Reader
}

// ExportFile is a rendered workbook ready for download
type ExportFile struct {
	Name    string
	Content []byte
}

// AnalysisService implements the analysis use cases on top of the engine and
// an AnalysisStore. Writes to one analysis are serialised; reads are not.
type AnalysisService struct {
	store       storage.AnalysisStore
	writer      *exporter.WorkbookWriter
	notifier    Notifier
	metrics     *infrastructure.BusinessMetrics
	tracer      trace.Tracer
	locks       *keyedMutex
	ingestOpts  dataprocessing.IngestOptions
	recentLimit int
	logger      *slog.Logger
	now         func() time.Time
}

// AnalysisOption configures an AnalysisService
type AnalysisOption func(*AnalysisService)

// WithMetrics records ingestion, rescale and export metrics
func WithMetrics(m *infrastructure.BusinessMetrics) AnalysisOption {
	return func(s *AnalysisService) { s.metrics = m }
}

// WithTracer opens spans for ingest, rescale and export
func WithTracer(t trace.Tracer) AnalysisOption {
	return func(s *AnalysisService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithNotifier broadcasts change events
func WithNotifier(n Notifier) AnalysisOption {
	return func(s *AnalysisService) { s.notifier = n }
}

// WithIngestOptions sets how strictly uploads are accepted
func WithIngestOptions(opts dataprocessing.IngestOptions) AnalysisOption {
	return func(s *AnalysisService) { s.ingestOpts = opts }
}

// WithRecentLimit sets how many analyses List returns
func WithRecentLimit(n int) AnalysisOption {
	return func(s *AnalysisService) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// NewAnalysisService creates the analysis service
func NewAnalysisService(store storage.AnalysisStore, logger *slog.Logger, opts ...AnalysisOption) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AnalysisService{
		store:       store,
		writer:      exporter.NewWorkbookWriter(logger),
		tracer:      tracenoop.NewTracerProvider().Tracer("custos/services"),
		locks:       newKeyedMutex(),
		ingestOpts:  dataprocessing.DefaultIngestOptions(),
		recentLimit: DefaultRecentLimit,
		logger:      infrastructure.WithComponent(logger, "analysis_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload reads the first sheet of a workbook, ingests it and stores the result
func (s *AnalysisService) Upload(ctx context.Context, in UploadInput) (*domain.Analysis, error) {
	if in.Reader == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyUpload)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSpace(in.FileName)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.FileName)), ".")

	ctx, span := s.tracer.Start(ctx, "analysis.ingest", trace.WithAttributes(
		attribute.String("file.name", in.FileName),
		attribute.String("file.format", format),
	))
	defer span.End()

	start := time.Now()
	ds, err := s.ingest(in)
	infrastructure.RecordIngestMetrics(ctx, s.metrics, format, rowCount(ds), time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "Ingestion rejected",
			slog.String("file_name", in.FileName),
			slog.String("error", err.Error()))
		return nil, err
	}

	if dups := dataprocessing.DuplicateRowIDs(ds); len(dups) > 0 {
		s.logger.WarnContext(ctx, "Duplicate row ids, lookups resolve to the first match",
			slog.String("file_name", in.FileName),
			slog.Any("row_ids", dups))
	}

	now := s.now()
	a := &domain.Analysis{
		ID:         uuid.New().String(),
		Name:       name,
		FileName:   in.FileName,
		UploadedAt: now,
		UpdatedAt:  now,
		Dataset:    ds,
	}
	if err := s.store.Create(ctx, a); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to store analysis: %w", err)
	}
	span.SetAttributes(
		attribute.String("analysis.id", a.ID),
		attribute.Int("analysis.rows", len(ds.Rows)),
	)

	s.logger.InfoContext(ctx, "Analysis ingested",
		slog.String("analysis_id", a.ID),
		slog.String("name", a.Name),
		slog.Int("rows", len(ds.Rows)),
		slog.Int("columns", len(ds.Schema.DataColumns())))
	s.notify(ctx, ws.TypeAnalysisCreated, a)
	return a, nil
}

func (s *AnalysisService) ingest(in UploadInput) (*domain.Dataset, error) {
	grid, err := dataprocessing.ReadGrid(in.Reader, in.FileName)
	if err != nil {
		return nil, err
	}
	return dataprocessing.IngestWithOptions(grid, s.ingestOpts)
}

// List returns the most recent analyses, newest first
func (s *AnalysisService) List(ctx context.Context) (api.AnalysisList, error) {
	summaries, err := s.store.List(ctx, s.recentLimit)
	if err != nil {
		return api.AnalysisList{}, fmt.Errorf("failed to list analyses: %w", err)
	}
	if summaries == nil {
		summaries = []domain.AnalysisSummary{}
	}
	return api.AnalysisList{Analyses: summaries, Count: len(summaries)}, nil
}

// Get returns one analysis with its dataset
func (s *AnalysisService) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	return s.store.Get(ctx, id)
}

// Views recomputes every aggregate of an analysis
func (s *AnalysisService) Views(ctx context.Context, id string) (api.AnalysisViews, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return api.AnalysisViews{}, err
	}
	return viewsOf(a), nil
}

// Rows returns the main table: each row with per-cell percentages and the
// per-column totals line
func (s *AnalysisService) Rows(ctx context.Context, id string) (api.RowsTable, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return api.RowsTable{}, err
	}

	ds := a.Dataset
	if ds == nil {
		ds = &domain.Dataset{}
	}
	views := dataprocessing.ComputeViews(ds)
	table := api.RowsTable{
		Columns:    ds.Schema.Columns,
		Rows:       make([]api.RowView, len(ds.Rows)),
		Totals:     views.Columns,
		GrandTotal: views.GrandTotal,
	}
	for i, row := range ds.Rows {
		table.Rows[i] = api.RowView{
			ExpenseRow: row,
			Percents:   dataprocessing.RowPercents(ds.Schema, row),
		}
	}
	return table, nil
}

// AccountDetail returns the drill-down of one account with money rounded to cents
func (s *AnalysisService) AccountDetail(ctx context.Context, id, account string) (api.AccountDetail, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return api.AccountDetail{}, err
	}

	for _, agg := range dataprocessing.ComputeViews(a.Dataset).Accounts {
		if agg.Account != account {
			continue
		}
		breakdown := make(map[string]float64, len(agg.Breakdown))
		for area, v := range agg.Breakdown {
			breakdown[area] = exporter.RoundMoney(v)
		}
		return api.AccountDetail{
			Account:   agg.Account,
			RowIDs:    agg.RowIDs,
			Total:     exporter.RoundMoney(agg.Total),
			Percent:   exporter.RoundMoney(agg.Percent),
			Breakdown: breakdown,
		}, nil
	}
	return api.AccountDetail{}, fmt.Errorf("account %q: %w", account, ErrAccountNotFound)
}

// Rename changes the display name of an analysis
func (s *AnalysisService) Rename(ctx context.Context, id, name string) (*domain.Analysis, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, ErrEmptyName)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Name = name
	a.UpdatedAt = s.now()
	if err := s.store.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to rename analysis: %w", err)
	}

	s.logger.InfoContext(ctx, "Analysis renamed",
		slog.String("analysis_id", id),
		slog.String("name", name))
	s.notify(ctx, ws.TypeAnalysisUpdated, a)
	return a, nil
}

// Delete removes an analysis and all of its rows
func (s *AnalysisService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Analysis deleted", slog.String("analysis_id", id))
	s.notify(ctx, ws.TypeAnalysisDeleted, &domain.Analysis{ID: id})
	return nil
}

// Rescale sets the total of one row, persists the dataset and returns the
// recomputed views. A rejected rescale leaves the stored analysis untouched.
func (s *AnalysisService) Rescale(ctx context.Context, id string, ref domain.RowRef, newTotal float64) (api.AnalysisViews, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.rescale", trace.WithAttributes(
		attribute.String("analysis.id", id),
		attribute.String("row.id", ref.RowID),
	))
	defer span.End()

	views, err := s.rescale(ctx, id, ref, newTotal)
	infrastructure.RecordRescaleMetrics(ctx, s.metrics, err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return api.AnalysisViews{}, err
	}
	return views, nil
}

func (s *AnalysisService) rescale(ctx context.Context, id string, ref domain.RowRef, newTotal float64) (api.AnalysisViews, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return api.AnalysisViews{}, err
	}

	ds, err := dataprocessing.RescaleRow(a.Dataset, ref, newTotal)
	if err != nil {
		s.logger.WarnContext(ctx, "Rescale rejected",
			slog.String("analysis_id", id),
			slog.String("row_id", ref.RowID),
			slog.String("error", err.Error()))
		return api.AnalysisViews{}, err
	}

	a.Dataset = ds
	a.UpdatedAt = s.now()
	if err := s.store.Update(ctx, a); err != nil {
		return api.AnalysisViews{}, fmt.Errorf("failed to store rescaled row: %w", err)
	}

	s.logger.InfoContext(ctx, "Row rescaled",
		slog.String("analysis_id", id),
		slog.String("row_id", ref.RowID),
		slog.String("account", ref.Account),
		slog.Float64("new_total", newTotal))
	s.notify(ctx, ws.TypeAnalysisUpdated, a)
	return viewsOf(a), nil
}

// Export rebuilds the workbook of an analysis, including rescaled values
func (s *AnalysisService) Export(ctx context.Context, id string) (*ExportFile, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.export", trace.WithAttributes(
		attribute.String("analysis.id", id),
	))
	defer span.End()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	ds := a.Dataset
	if ds == nil {
		ds = &domain.Dataset{}
	}
	var buf bytes.Buffer
	if err := s.writer.Write(&buf, dataprocessing.ExportGrid(ds)); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	infrastructure.RecordExportMetrics(ctx, s.metrics)

	file := &ExportFile{Name: exporter.ExportFileName(a.Name), Content: buf.Bytes()}
	s.logger.InfoContext(ctx, "Workbook exported",
		slog.String("analysis_id", id),
		slog.String("file_name", file.Name),
		slog.Int("bytes", len(file.Content)))
	return file, nil
}

// notify broadcasts a change event. Events always carry a trace id so clients
// can correlate them with server logs, including calls made outside HTTP.
func (s *AnalysisService) notify(ctx context.Context, eventType string, a *domain.Analysis) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(infrastructure.EnsureTraceID(ctx), eventType, api.AnalysisEvent{ID: a.ID, Name: a.Name})
}

func viewsOf(a *domain.Analysis) api.AnalysisViews {
	return api.AnalysisViews{
		Analysis: a.Summary(),
		Views:    dataprocessing.ComputeViews(a.Dataset),
	}
}

func rowCount(ds *domain.Dataset) int {
	if ds == nil {
		return 0
	}
	return len(ds.Rows)
}

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, dataprocessing.ErrSchema) ||
		errors.Is(err, dataprocessing.ErrValidation) ||
		errors.Is(err, dataprocessing.ErrNotFound) ||
		errors.Is(err, storage.ErrNotFound)
}
