package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lenslink/internal/core/domain"
	"lenslink/internal/infrastructure/middleware"
	"lenslink/internal/infrastructure/monitoring"
	"lenslink/internal/infrastructure/repositories/file"
	"lenslink/internal/infrastructure/repositories/memory"
	apperrors "lenslink/pkg/errors"
	"lenslink/pkg/logger"
	"lenslink/pkg/utils"
)

type mockScanService struct {
	mock.Mock
}

func (m *mockScanService) Capture(ctx context.Context, req domain.CaptureRequest) (*domain.ScanRecord, error) {
	args := m.Called(ctx, req)
	record, _ := args.Get(0).(*domain.ScanRecord)
	return record, args.Error(1)
}

func (m *mockScanService) FollowUp(ctx context.Context, cmd domain.FollowUpCommand) error {
	return m.Called(ctx, cmd).Error(0)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	return router
}

func multipartUpload(t *testing.T, image []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if image != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="capture.png"`)
		header.Set("Content-Type", "image/png")
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doJSON(t *testing.T, router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestScanHandler_Analyze(t *testing.T) {
	scans := new(mockScanService)
	router := newRouter()
	NewScanHandler(scans, 1<<20).SetupRoutes(router)

	image := []byte("\x89PNG fake image")
	scans.On("Capture", mock.Anything, mock.MatchedBy(func(req domain.CaptureRequest) bool {
		return bytes.Equal(req.Image, image) &&
			req.Origin == "3f2a-conn" &&
			req.Filename == "capture.png" &&
			req.ContentType == "image/png" &&
			req.Provider == "ollama" &&
			req.Model == "llava" &&
			req.Persona == "You are a plant expert."
	})).Return(&domain.ScanRecord{ID: "1-a"}, nil).Once()

	body, contentType := multipartUpload(t, image, map[string]string{
		"connectionId": "3f2a-conn",
		"provider":     "ollama",
		"model":        "llava",
		"persona":      "You are a plant expert.",
	})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w, resp := doJSON(t, router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	scans.AssertExpectations(t)
}

func TestScanHandler_RequestLogCarriesConnectionID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	scans := new(mockScanService)
	scans.On("Capture", mock.Anything, mock.Anything).Return(&domain.ScanRecord{ID: "1-a"}, nil).Once()

	router := newRouter()
	router.Use(middleware.RequestLoggerMiddleware(logger.NewContextLogger(zap.New(core))))
	NewScanHandler(scans, 1<<20).SetupRoutes(router)

	body, contentType := multipartUpload(t, []byte("img"), map[string]string{"connectionId": "3f2a-conn"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w, _ := doJSON(t, router, req)
	assert.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "3f2a-conn", entries[0].ContextMap()["connection_id"])
}

func TestScanHandler_MissingImage(t *testing.T) {
	scans := new(mockScanService)
	router := newRouter()
	NewScanHandler(scans, 1<<20).SetupRoutes(router)

	body, contentType := multipartUpload(t, nil, map[string]string{"provider": "gemini"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w, resp := doJSON(t, router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", resp["error"])
	scans.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestScanHandler_UploadTooLarge(t *testing.T) {
	scans := new(mockScanService)
	router := newRouter()
	NewScanHandler(scans, 64).SetupRoutes(router)

	body, contentType := multipartUpload(t, bytes.Repeat([]byte("x"), 1024), nil)
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w, resp := doJSON(t, router, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "INVALID_INPUT", resp["error"])
	scans.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestScanHandler_InvalidConnectionID(t *testing.T) {
	scans := new(mockScanService)
	router := newRouter()
	NewScanHandler(scans, 1<<20).SetupRoutes(router)

	body, contentType := multipartUpload(t, []byte("img"), map[string]string{"connectionId": "not valid!"})
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	w, _ := doJSON(t, router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	scans.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestScanHandler_CaptureErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "upstream failure surfaces backend message",
			err:     apperrors.NewUpstreamError("gemini", errors.New("quota exhausted")),
			status:  http.StatusBadGateway,
			code:    "UPSTREAM_ERROR",
			message: "quota exhausted",
		},
		{
			name:    "missing credential",
			err:     apperrors.NewConfigurationError("gemini", "gemini API key is not configured"),
			status:  http.StatusBadRequest,
			code:    "CONFIGURATION_ERROR",
			message: "API key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scans := new(mockScanService)
			scans.On("Capture", mock.Anything, mock.Anything).Return(nil, tc.err)

			router := newRouter()
			NewScanHandler(scans, 1<<20).SetupRoutes(router)

			body, contentType := multipartUpload(t, []byte("img"), nil)
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", contentType)

			w, resp := doJSON(t, router, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, resp["error"])
			assert.Contains(t, resp["message"], tc.message)
		})
	}
}

func newQueryFixture(t *testing.T) (*gin.Engine, *file.HistoryStore, *memory.DeviceRegistry, *file.PairingStore) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	dir := t.TempDir()

	history, err := file.NewHistoryStore(dir+"/history", 50, logger)
	require.NoError(t, err)
	pairs, err := file.NewPairingStore(dir+"/pairings.json", logger)
	require.NoError(t, err)
	registry := memory.NewDeviceRegistry()

	router := newRouter()
	NewQueryHandler(history, registry, pairs).SetupRoutes(router)
	return router, history, registry, pairs
}

func TestQueryHandler_History(t *testing.T) {
	router, history, _, _ := newQueryFixture(t)

	now := time.Now()
	record := domain.ScanRecord{
		ID:           utils.GenerateRecordID(now),
		Answer:       "a fern",
		TimestampISO: utils.FormatTimestamp(now),
		Thread:       []domain.ThreadEntry{},
	}
	require.NoError(t, history.Append(context.Background(), record))

	w, body := doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	records := body["records"].([]interface{})
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].(map[string]interface{})["id"])

	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/history/"+utils.DayKey(now), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["records"], 1)

	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/history/1999-01-01", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["records"])

	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/history/yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", body["error"])
}

func TestQueryHandler_DevicesAndPairs(t *testing.T) {
	router, _, registry, pairs := newQueryFixture(t)

	registry.Register("conn-1", "laptop", "Laptop", false)
	require.NoError(t, pairs.AddPair(context.Background(), "laptop", "Laptop", "phone", "Phone"))

	w, body := doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	devices := body["devices"].([]interface{})
	require.Len(t, devices, 1)
	assert.Equal(t, "laptop", devices[0].(map[string]interface{})["stableId"])

	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/pairs/phone", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	edges := body["pairs"].([]interface{})
	require.Len(t, edges, 1)
	assert.Equal(t, map[string]interface{}{"id": "laptop", "name": "Laptop"}, edges[0])

	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/pairs/unknown", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["pairs"])

	w, _ = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/pairs/bad%20id", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler(t *testing.T) {
	checker := monitoring.NewHealthChecker()
	ready := true
	checker.AddCheck("store", func(ctx context.Context) (bool, error) { return ready, nil }, time.Second)

	router := newRouter()
	NewHealthHandler(checker, func() int { return 3 }).SetupRoutes(router)

	w, body := doJSON(t, router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["connections"])
	assert.Regexp(t, `^\d+ms$`, body["uptime"])

	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	ready = false
	w, body = doJSON(t, router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", body["status"])
}
