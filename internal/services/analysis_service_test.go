package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"custos/internal/dataprocessing"
	"custos/internal/infrastructure"
	"custos/internal/storage"
	ws "custos/internal/websocket"
	api "custos/pkg/contracts/api/v1"
	"custos/pkg/contracts/domain"
)

var expenseSheet = [][]interface{}{
	{nil, "Pessoal", nil, "Frota"},
	{"CONTA", "Salário", "Bônus", "Diesel"},
	{"Vendas", 100, 50, 0},
	{"Compras", 200.004, nil, 0},
	{"TOTAL", 300.004, 50, 0},
}

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func newTestService(t *testing.T, opts ...AnalysisOption) (*AnalysisService, *storage.MemoryStore, *MockNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	notifier := &MockNotifier{}
	opts = append([]AnalysisOption{WithNotifier(notifier)}, opts...)
	return NewAnalysisService(store, nil, opts...), store, notifier
}

func uploadSample(t *testing.T, svc *AnalysisService, notifier *MockNotifier) *domain.Analysis {
	t.Helper()
	notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisCreated, mock.Anything).Return().Once()
	a, err := svc.Upload(context.Background(), UploadInput{
		Name:     "Março",
		FileName: "custos.xlsx",
		Reader:   buildWorkbook(t, expenseSheet),
	})
	require.NoError(t, err)
	return a
}

func TestUpload(t *testing.T) {
	svc, store, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Março", a.Name)
	assert.Equal(t, "custos.xlsx", a.FileName)
	require.Len(t, a.Dataset.Rows, 2)
	assert.Equal(t, "3", a.Dataset.Rows[0].RowID)
	assert.Equal(t, "Vendas", a.Dataset.Rows[0].Account)
	assert.InDelta(t, 150, a.Dataset.Rows[0].RowTotal, 1e-9)

	stored, err := store.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Dataset.Rows, stored.Dataset.Rows)

	notifier.AssertCalled(t, "Broadcast", mock.Anything, ws.TypeAnalysisCreated, api.AnalysisEvent{ID: a.ID, Name: "Março"})
}

func TestNotificationsCarryTraceID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{name: "generated when missing", ctx: context.Background()},
		{name: "request id kept", ctx: infrastructure.WithTraceID(context.Background(), "req-42"), want: "req-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, notifier := newTestService(t)
			var traceID string
			notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisCreated, mock.Anything).
				Run(func(args mock.Arguments) {
					traceID = infrastructure.GetTraceID(args.Get(0).(context.Context))
				}).Return().Once()

			_, err := svc.Upload(tt.ctx, UploadInput{FileName: "custos.xlsx", Reader: buildWorkbook(t, expenseSheet)})
			require.NoError(t, err)

			if tt.want != "" {
				assert.Equal(t, tt.want, traceID)
			} else {
				assert.Len(t, traceID, 36)
			}
		})
	}
}

func TestUploadNameDefaultsToFileName(t *testing.T) {
	svc, _, notifier := newTestService(t)
	notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisCreated, mock.Anything).Return()

	a, err := svc.Upload(context.Background(), UploadInput{
		Name:     "   ",
		FileName: "custos.xlsx",
		Reader:   buildWorkbook(t, expenseSheet),
	})
	require.NoError(t, err)
	assert.Equal(t, "custos.xlsx", a.Name)
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name    string
		input   func(t *testing.T) UploadInput
		wantErr []error
	}{
		{
			name: "missing reader",
			input: func(t *testing.T) UploadInput {
				return UploadInput{FileName: "custos.xlsx"}
			},
			wantErr: []error{ErrInvalidInput, ErrEmptyUpload},
		},
		{
			name: "unsupported extension",
			input: func(t *testing.T) UploadInput {
				return UploadInput{FileName: "custos.csv", Reader: strings.NewReader("a,b")}
			},
			wantErr: []error{dataprocessing.ErrValidation, dataprocessing.ErrUnsupportedFormat},
		},
		{
			name: "corrupt workbook",
			input: func(t *testing.T) UploadInput {
				return UploadInput{FileName: "custos.xlsx", Reader: strings.NewReader("not a zip")}
			},
			wantErr: []error{dataprocessing.ErrValidation, dataprocessing.ErrUnreadableWorkbook},
		},
		{
			name: "missing account column",
			input: func(t *testing.T) UploadInput {
				return UploadInput{FileName: "custos.xlsx", Reader: buildWorkbook(t, [][]interface{}{
					{nil, "Pessoal"},
					{"CENTRO", "Salário"},
					{"Vendas", 100},
				})}
			},
			wantErr: []error{dataprocessing.ErrSchema, dataprocessing.ErrMissingAccountColumn},
		},
		{
			name: "only subtotal rows",
			input: func(t *testing.T) UploadInput {
				return UploadInput{FileName: "custos.xlsx", Reader: buildWorkbook(t, [][]interface{}{
					{nil, "Pessoal"},
					{"CONTA", "Salário"},
					{"Total Geral", 100},
				})}
			},
			wantErr: []error{dataprocessing.ErrValidation, dataprocessing.ErrNoDataRows},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, notifier := newTestService(t)

			_, err := svc.Upload(context.Background(), tt.input(t))
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
			assert.True(t, IsClientError(err))

			list, listErr := store.List(context.Background(), 0)
			require.NoError(t, listErr)
			assert.Empty(t, list)
			notifier.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUploadRequireRowID(t *testing.T) {
	svc, _, _ := newTestService(t, WithIngestOptions(dataprocessing.IngestOptions{RequireRowID: true}))

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName: "custos.xlsx",
		Reader:   buildWorkbook(t, expenseSheet),
	})
	assert.ErrorIs(t, err, dataprocessing.ErrMissingRowIDColumn)
}

func TestUploadStoreFailure(t *testing.T) {
	store := &MockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	svc := NewAnalysisService(store, nil)

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName: "custos.xlsx",
		Reader:   buildWorkbook(t, expenseSheet),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store analysis")
	assert.False(t, IsClientError(err))
	store.AssertExpectations(t)
}

func TestViews(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)

	got, err := svc.Views(context.Background(), a.ID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, got.Analysis.ID)
	assert.Equal(t, 2, got.Analysis.RowCount)
	assert.Equal(t, 3, got.Analysis.ColumnCount)
	assert.InDelta(t, 350.004, got.Views.GrandTotal, 1e-9)
	require.Len(t, got.Views.ZeroAreas, 1)
	assert.Equal(t, "Frota", got.Views.ZeroAreas[0].Area)

	_, err = svc.Views(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRows(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)

	table, err := svc.Rows(context.Background(), a.ID)
	require.NoError(t, err)

	assert.Len(t, table.Columns, 4)
	require.Len(t, table.Rows, 2)
	assert.InDelta(t, 100.0/150*100, table.Rows[0].Percents["Pessoal - Salário"], 1e-9)
	assert.InDelta(t, 50.0/150*100, table.Rows[0].Percents["Pessoal - Bônus"], 1e-9)
	assert.Equal(t, 0.0, table.Rows[0].Percents["Frota - Diesel"])
	require.Len(t, table.Totals, 3)
	assert.Equal(t, "Pessoal - Salário", table.Totals[0].Column)
	assert.InDelta(t, 300.004, table.Totals[0].Total, 1e-9)
	assert.InDelta(t, 350.004, table.GrandTotal, 1e-9)
}

func TestAccountDetail(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)

	detail, err := svc.AccountDetail(context.Background(), a.ID, "Compras")
	require.NoError(t, err)
	assert.Equal(t, "Compras", detail.Account)
	assert.Equal(t, []string{"4"}, detail.RowIDs)
	assert.Equal(t, 200.0, detail.Total)
	assert.Equal(t, 57.14, detail.Percent)
	assert.Equal(t, map[string]float64{"Pessoal": 200}, detail.Breakdown)

	_, err = svc.AccountDetail(context.Background(), a.ID, "Marketing")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	// Stored values stay unrounded
	views, err := svc.Views(context.Background(), a.ID)
	require.NoError(t, err)
	for _, acc := range views.Views.Accounts {
		if acc.Account == "Compras" {
			assert.InDelta(t, 200.004, acc.Total, 1e-9)
		}
	}
}

func TestRename(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)
	notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisUpdated, mock.Anything).Return()

	renamed, err := svc.Rename(context.Background(), a.ID, "  Abril  ")
	require.NoError(t, err)
	assert.Equal(t, "Abril", renamed.Name)

	got, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Abril", got.Name)
	assert.Equal(t, a.Dataset.Rows, got.Dataset.Rows)

	_, err = svc.Rename(context.Background(), a.ID, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = svc.Rename(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)
	notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisDeleted, api.AnalysisEvent{ID: a.ID}).Return().Once()

	require.NoError(t, svc.Delete(context.Background(), a.ID))
	_, err := svc.Get(context.Background(), a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), a.ID), storage.ErrNotFound)
	notifier.AssertExpectations(t)
}

func TestList(t *testing.T) {
	svc, _, notifier := newTestService(t, WithRecentLimit(2))
	notifier.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return()

	for i := 0; i < 3; i++ {
		_, err := svc.Upload(context.Background(), UploadInput{
			Name:     fmt.Sprintf("planilha %d", i),
			FileName: "custos.xlsx",
			Reader:   buildWorkbook(t, expenseSheet),
		})
		require.NoError(t, err)
	}

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Analyses, 2)
}

func TestListEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list.Analyses)
	assert.Zero(t, list.Count)
}

func TestRescale(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)
	notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisUpdated, mock.Anything).Return()

	got, err := svc.Rescale(context.Background(), a.ID, domain.RowRef{RowID: "3"}, 300)
	require.NoError(t, err)
	assert.InDelta(t, 500.004, got.Views.GrandTotal, 1e-9)

	stored, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	row := stored.Dataset.Rows[0]
	assert.InDelta(t, 200, row.Values["Pessoal - Salário"], 1e-9)
	assert.InDelta(t, 100, row.Values["Pessoal - Bônus"], 1e-9)
	assert.InDelta(t, 300, row.RowTotal, 1e-9)
	assert.InDelta(t, 200.004, stored.Dataset.Rows[1].RowTotal, 1e-9)
	assert.True(t, stored.UpdatedAt.After(stored.UploadedAt) || stored.UpdatedAt.Equal(stored.UploadedAt))
}

func TestRescaleRejected(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		ref      domain.RowRef
		newTotal float64
		wantErr  error
	}{
		{name: "unknown row", ref: domain.RowRef{RowID: "99"}, newTotal: 10, wantErr: dataprocessing.ErrNotFound},
		{name: "account mismatch", ref: domain.RowRef{RowID: "3", Account: "Compras"}, newTotal: 10, wantErr: dataprocessing.ErrRowNotFound},
		{name: "not a number", ref: domain.RowRef{RowID: "3"}, newTotal: math.NaN(), wantErr: dataprocessing.ErrInvalidTotal},
		{name: "infinite", ref: domain.RowRef{RowID: "3"}, newTotal: math.Inf(1), wantErr: dataprocessing.ErrValidation},
		{name: "unknown analysis", id: "missing", ref: domain.RowRef{RowID: "3"}, newTotal: 10, wantErr: storage.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, notifier := newTestService(t)
			a := uploadSample(t, svc, notifier)
			id := tt.id
			if id == "" {
				id = a.ID
			}

			_, err := svc.Rescale(context.Background(), id, tt.ref, tt.newTotal)
			assert.ErrorIs(t, err, tt.wantErr)

			stored, getErr := svc.Get(context.Background(), a.ID)
			require.NoError(t, getErr)
			assert.Equal(t, a.Dataset.Rows, stored.Dataset.Rows)
			notifier.AssertNotCalled(t, "Broadcast", mock.Anything, ws.TypeAnalysisUpdated, mock.Anything)
		})
	}
}

func TestRescaleStoreFailure(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)

	store := &MockStore{}
	store.On("Get", mock.Anything, a.ID).Return(a.Clone(), nil)
	store.On("Update", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc.store = store

	_, err := svc.Rescale(context.Background(), a.ID, domain.RowRef{RowID: "3"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store rescaled row")
	store.AssertExpectations(t)
}

func TestConcurrentWritesAreSerialised(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)
	notifier.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				_, err := svc.Rename(context.Background(), a.ID, fmt.Sprintf("nome %d", i))
				assert.NoError(t, err)
				return
			}
			row := "3"
			if i%2 == 0 {
				row = "4"
			}
			_, err := svc.Rescale(context.Background(), a.ID, domain.RowRef{RowID: row}, float64(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	for _, row := range stored.Dataset.Rows {
		assert.InDelta(t, dataprocessing.SumValues(stored.Dataset.Schema, row.Values), row.RowTotal, 1e-9)
	}
	assert.Zero(t, svc.locks.size())
}

func TestExport(t *testing.T) {
	svc, _, notifier := newTestService(t)
	a := uploadSample(t, svc, notifier)
	notifier.On("Broadcast", mock.Anything, ws.TypeAnalysisUpdated, mock.Anything).Return()

	_, err := svc.Rescale(context.Background(), a.ID, domain.RowRef{RowID: "3"}, 300)
	require.NoError(t, err)

	file, err := svc.Export(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Março_reconstruido.xlsx", file.Name)
	require.NotEmpty(t, file.Content)

	grid, err := dataprocessing.ReadGrid(bytes.NewReader(file.Content), file.Name)
	require.NoError(t, err)
	ds, err := dataprocessing.Ingest(grid)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "Vendas", ds.Rows[0].Account)
	assert.InDelta(t, 300, ds.Rows[0].RowTotal, 1e-9)

	_, err = svc.Export(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestServiceMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := infrastructure.CreateBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	svc, _, notifier := newTestService(t, WithMetrics(metrics))
	a := uploadSample(t, svc, notifier)
	notifier.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return()

	_, err = svc.Upload(context.Background(), UploadInput{FileName: "custos.ods", Reader: strings.NewReader("")})
	require.Error(t, err)
	_, err = svc.Rescale(context.Background(), a.ID, domain.RowRef{RowID: "3"}, 10)
	require.NoError(t, err)
	_, err = svc.Rescale(context.Background(), a.ID, domain.RowRef{RowID: "nope"}, 10)
	require.Error(t, err)
	_, err = svc.Export(context.Background(), a.ID)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := counterTotals(rm)
	assert.Equal(t, int64(1), counts["analyses_ingested_total"])
	assert.Equal(t, int64(1), counts["analysis_ingestion_failures_total"])
	assert.Equal(t, int64(2), counts["expense_rows_ingested_total"])
	assert.Equal(t, int64(1), counts["expense_rows_rescaled_total"])
	assert.Equal(t, int64(1), counts["expense_row_rescale_failures_total"])
	assert.Equal(t, int64(1), counts["workbooks_exported_total"])
}

func counterTotals(rm metricdata.ResourceMetrics) map[string]int64 {
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	default:
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}
