package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"custos/internal/config"
	ws "custos/internal/websocket"
	api "custos/pkg/contracts/api/v1"
	"custos/pkg/contracts/domain"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Security.RateLimit.Enabled = false
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.EnableTracing = false
	return cfg
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	return a
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	rows := [][]interface{}{
		{nil, "Pessoal", nil, "Frota"},
		{"CONTA", "Salário", "Bônus", "Diesel"},
		{"Vendas", 100, 50, 0},
		{"Compras", 250, nil, 100},
		{"Total geral", 350, 50, 100},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func upload(t *testing.T, baseURL, name string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", name))
	part, err := mw.CreateFormFile("file", "despesas.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(baseURL+"/api/analyses", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestNewUnknownStorageDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "sqlite"

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), `unknown storage driver "sqlite"`)
}

func TestNewWiresComponents(t *testing.T) {
	a := newTestApp(t)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.WebSocketHub)
	assert.NotNil(t, a.AnalysisService)
	assert.NotNil(t, a.HealthService)
	assert.NotNil(t, a.Router)
	assert.Equal(t, ":0", a.Server.Addr)
	assert.Equal(t, a.Router, a.Server.Handler)
}

func TestApplicationEndToEnd(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.WebSocketHub.Run(ctx)

	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.WebSocketHub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	var hello ws.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, ws.TypeConnection, hello.Type)

	// Upload
	resp := upload(t, srv.URL, "Março", workbook(t))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var summary domain.AnalysisSummary
	decode(t, resp, &summary)
	assert.Equal(t, "Março", summary.Name)
	assert.Equal(t, 2, summary.RowCount)
	assert.Equal(t, 3, summary.ColumnCount)
	assert.Equal(t, "/api/analyses/"+summary.ID, resp.Header.Get("Location"))

	var created ws.Message
	require.NoError(t, conn.ReadJSON(&created))
	assert.Equal(t, ws.TypeAnalysisCreated, created.Type)

	// Views
	resp, err = http.Get(srv.URL + "/api/analyses/" + summary.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var views api.AnalysisViews
	decode(t, resp, &views)
	assert.InDelta(t, 500.0, views.Views.GrandTotal, 1e-9)
	require.Len(t, views.Views.Areas, 2)

	// Rescale the Compras row to 700; Diesel share stays at 100/350.
	body := strings.NewReader(`{"row_id":"4","new_total":700}`)
	resp, err = http.Post(srv.URL+"/api/analyses/"+summary.ID+"/rows/rescale", "application/json", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &views)
	assert.InDelta(t, 850.0, views.Views.GrandTotal, 1e-9)

	var updated ws.Message
	require.NoError(t, conn.ReadJSON(&updated))
	assert.Equal(t, ws.TypeAnalysisUpdated, updated.Type)

	// Export
	resp, err = http.Get(srv.URL + "/api/analyses/" + summary.ID + "/export")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "_reconstruido.xlsx")
	exported, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	reread, err := excelize.OpenReader(bytes.NewReader(exported))
	require.NoError(t, err)
	defer reread.Close()
	assert.Equal(t, "Planilha Reconstruída", reread.GetSheetName(0))

	// Metrics
	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "analyses_ingested_total")
	assert.Contains(t, string(metrics), "expense_rows_rescaled_total")

	// Health
	resp, err = http.Get(srv.URL + "/api/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplicationProblemResponses(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantType   string
	}{
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/nothing-here",
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/not-found",
		},
		{
			name:       "unknown analysis",
			method:     http.MethodGet,
			path:       "/api/analyses/9f1c7a3e-0000-4000-8000-000000000000",
			wantStatus: http.StatusNotFound,
			wantType:   "/errors/analysis/not-found",
		},
		{
			name:       "method not allowed",
			method:     http.MethodPut,
			path:       "/api/version",
			wantStatus: http.StatusMethodNotAllowed,
			wantType:   "/errors/method-not-allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

			var problem map[string]interface{}
			decode(t, resp, &problem)
			assert.Equal(t, tt.wantType, problem["type"])
		})
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	a := newTestApp(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
