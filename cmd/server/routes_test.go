package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent/api"
	"github.com/tendant/sealed-content/pkg/sealedcontent/config"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T, env string) http.Handler {
	t.Helper()
	cfg, err := config.Load(
		config.WithEnvironment(env),
		config.WithBaseURL("https://files.example.com"),
		config.WithPasswordCost(bcrypt.MinCost),
		config.WithEventLogging(false),
	)
	require.NoError(t, err)

	rt, err := cfg.Build(context.Background(), api.NewMetricsEventSink())
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	return NewRouter(api.NewHandler(rt.Service, api.WithMaxUploadSize(cfg.MaxFileSize)), cfg, 5*time.Second)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, "testing")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "memory", health.Database)
	assert.Equal(t, "memory", health.Storage)
}

func TestCORSOnlyInDevelopment(t *testing.T) {
	for _, tt := range []struct {
		env  string
		want string
	}{
		{"development", "*"},
		{"production", ""},
	} {
		t.Run(tt.env, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newTestRouter(t, tt.env).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestEndToEnd(t *testing.T) {
	r := newTestRouter(t, "testing")

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "Passw0rdX"})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var account api.AccountResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &account))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="hello.txt"`)
	header.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("hello from the router"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+account.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var uploaded api.UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploaded))

	u, err := url.Parse(uploaded.FileURL)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello from the router", rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	metrics := rr.Body.String()
	assert.True(t, strings.Contains(metrics, "sealed_uploads_total"))
	assert.True(t, strings.Contains(metrics, `path="/api/v1/uploads/{object_id}"`))
}
