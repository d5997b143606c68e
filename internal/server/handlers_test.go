package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visatk/pdf-core/internal/config"
	"github.com/visatk/pdf-core/internal/session"
	"github.com/visatk/pdf-core/internal/storage/memoryblob"
)

type stubSummarizer struct{}

func (stubSummarizer) Summarize(context.Context, string) (string, error) {
	return "stub summary", nil
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:   "test",
		Port:     "0",
		LogLevel: "error",
	}
	registry := session.NewRegistry(memoryblob.NewStore(), stubSummarizer{}, clockwork.NewRealClock())
	t.Cleanup(registry.Shutdown)

	srv := NewServer(cfg, registry, nil, clockwork.NewRealClock())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// multipartBody builds a multipart form with a single "file" field.
func multipartBody(t *testing.T, fieldName, fileName, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+fieldName+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func uploadDocument(t *testing.T, ts *httptest.Server, data []byte) string {
	t.Helper()

	body, contentType := multipartBody(t, "file", "report.pdf", "application/pdf", data)
	resp, err := http.Post(ts.URL+"/session/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
		Meta    struct {
			FileName   string `json:"fileName"`
			UploadedAt int64  `json:"uploadedAt"`
		} `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Success)
	require.NotEmpty(t, result.ID)
	assert.Equal(t, "report.pdf", result.Meta.FileName)
	assert.NotZero(t, result.Meta.UploadedAt)
	return result.ID
}

func TestUpload_MissingFileField(t *testing.T) {
	ts := testServer(t)

	body, contentType := multipartBody(t, "wrongfield", "report.pdf", "application/pdf", []byte("data"))
	resp, err := http.Post(ts.URL+"/session/upload", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "validation", errResp["type"])
}

func TestUploadDownloadRoundtrip(t *testing.T) {
	ts := testServer(t)
	payload := []byte("%PDF-1.4 content")

	id := uploadDocument(t, ts, payload)

	resp, err := http.Get(ts.URL + "/session/download?id=" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownload_NoDocument(t *testing.T) {
	ts := testServer(t)

	// A well-formed but never-uploaded-to id resolves to an empty session.
	resp, err := http.Get(ts.URL + "/session/download?id=b2f7c3cb-54f5-4f41-9d5e-111111111111")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownload_InvalidSessionID(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/session/download?id=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownload_MissingSessionID(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/session/download")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveChanges_OverwritesStoredBytes(t *testing.T) {
	ts := testServer(t)

	id := uploadDocument(t, ts, []byte("original"))

	body, contentType := multipartBody(t, "file", "report.pdf", "application/pdf", []byte("rendered"))
	resp, err := http.Post(ts.URL+"/session/save-changes?id="+id, contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result["success"])

	download, err := http.Get(ts.URL + "/session/download?id=" + id)
	require.NoError(t, err)
	defer download.Body.Close()
	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("rendered"), data)
}

func TestSaveChanges_MissingSessionID(t *testing.T) {
	ts := testServer(t)

	body, contentType := multipartBody(t, "file", "report.pdf", "application/pdf", []byte("rendered"))
	resp, err := http.Post(ts.URL+"/session/save-changes", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetadata(t *testing.T) {
	ts := testServer(t)

	id := uploadDocument(t, ts, []byte("content"))

	resp, err := http.Get(ts.URL + "/session/metadata?id=" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var meta map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Equal(t, "report.pdf", meta["fileName"])
}

func TestMetadata_EmptySession(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/session/metadata?id=b2f7c3cb-54f5-4f41-9d5e-222222222222")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var meta map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Empty(t, meta)
}

func TestCORSHeaders(t *testing.T) {
	ts := testServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/session/metadata?id=b2f7c3cb-54f5-4f41-9d5e-333333333333", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://editor.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	ts := testServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/session/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://editor.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestHealthEndpoints(t *testing.T) {
	ts := testServer(t)

	live, err := http.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	defer live.Body.Close()
	assert.Equal(t, http.StatusOK, live.StatusCode)

	// No health checker configured: readiness is unconditionally ok.
	ready, err := http.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}
