package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickfit/clickfit/internal/app"
	"github.com/clickfit/clickfit/internal/config"
	"github.com/clickfit/clickfit/internal/middleware"
)

func setupRoutes(t *testing.T) http.Handler {
	t.Helper()
	return setupRoutesWithUploadRoute(t, "upload_images")
}

func setupRoutesWithUploadRoute(t *testing.T, route string) http.Handler {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		AppName:        "ClickFit",
		AppEnv:         "test",
		DBDriver:       "sqlite",
		DBConnection:   filepath.Join(dir, "data", "clickfit.db"),
		CORSOrigins:    []string{"*"},
		RequestTimeout: 5 * time.Second,
		Upload: config.UploadConfig{
			Dir:      filepath.Join(dir, "upload_images"),
			Route:    route,
			Prefix:   "fitness",
			MaxSize:  5 << 20,
			MaxFiles: 10,
		},
		Storage: config.StorageConfig{Driver: config.StorageDriverLocal, Timeout: time.Second},
	}

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return SetupRoutes(a)
}

func TestRoutesHealth(t *testing.T) {
	h := setupRoutes(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRoutesCORS(t *testing.T) {
	h := setupRoutes(t)

	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://clickfit.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/images", nil)
	req.Header.Set("Origin", "http://clickfit.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutesMetricsAfterListing(t *testing.T) {
	h := setupRoutes(t)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/images", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clickfit_storage_operation_duration_seconds_count{driver="local",operation="list"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRoutesNotFound(t *testing.T) {
	h := setupRoutes(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing/route", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Route not found","code":"ROUTE_NOT_FOUND"}`, rec.Body.String())
}

func TestRoutesUploadLocatorServed(t *testing.T) {
	h := setupRoutes(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload_images/fitness-1-1.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "File not found")
}

func TestRoutesLocatorResolvesWithSlashedRoute(t *testing.T) {
	h := setupRoutesWithUploadRoute(t, "/upload_images/")

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="photo.gif"`)
	header.Set("Content-Type", "image/gif")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("GIF89a"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Regexp(t, `^/upload_images/fitness-\d+-\d+\.gif$`, out.URL)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, out.URL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GIF89a", rec.Body.String())
}
