package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"github.com/tendant/sealed-content/pkg/sealedcontent/api"
	"github.com/tendant/sealed-content/pkg/sealedcontent/repo/memory"
	memorystorage "github.com/tendant/sealed-content/pkg/sealedcontent/storage/memory"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	router http.Handler
	repo   *memory.Repository
}

func newTestServer(t *testing.T, maxSize int64) *testServer {
	t.Helper()
	repo := memory.New()
	svc, err := sealedcontent.New(
		sealedcontent.WithRepository(repo),
		sealedcontent.WithBlobStore(memorystorage.New()),
		sealedcontent.WithPasswordCost(bcrypt.MinCost),
		sealedcontent.WithMaxFileSize(maxSize),
		sealedcontent.WithBaseURL("http://example.test/"),
		sealedcontent.WithEventSink(api.NewMetricsEventSink()),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(api.MetricsMiddleware())
	r.Mount("/api/v1", api.NewHandler(svc, api.WithMaxUploadSize(maxSize)).Routes())
	return &testServer{router: r, repo: repo}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) register(t *testing.T, username string) api.AccountResponse {
	t.Helper()
	body := `{"username":"` + username + `","password":"Passw0rdX"}`
	rr := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp api.AccountResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func uploadRequest(t *testing.T, token, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return req
}

func (s *testServer) upload(t *testing.T, token string, data string) api.UploadResponse {
	t.Helper()
	rr := s.do(uploadRequest(t, token, "hello.txt", "text/plain", []byte(data)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp api.UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// localPath strips the public base URL from a capability URL.
func localPath(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.RequestURI()
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp.Error
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)

	account := s.register(t, "alice")
	assert.Equal(t, "alice", account.Username)
	assert.NotEmpty(t, account.Token)
	assert.NotEmpty(t, account.ID)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"duplicate", `{"username":"ALICE","password":"Passw0rdX"}`, http.StatusConflict},
		{"missing fields", `{"username":"bob"}`, http.StatusBadRequest},
		{"bad username", `{"username":"b!","password":"Passw0rdX"}`, http.StatusBadRequest},
		{"weak password", `{"username":"bob","password":"password"}`, http.StatusBadRequest},
		{"password beyond bcrypt limit", `{"username":"bob","password":"Aa1` + strings.Repeat("b", 80) + `"}`, http.StatusBadRequest},
		{"malformed json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rr.Code)
			assert.NotEmpty(t, errorMessage(t, rr))
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	account := s.register(t, "alice")

	rr := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"alice","password":"Passw0rdX"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp api.AccountResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, account.Token, resp.Token)

	rr = s.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"alice","password":"Wrong1234"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUploadAndFetch(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	account := s.register(t, "alice")

	up := s.upload(t, "Bearer "+account.Token, "hello world")
	assert.True(t, strings.HasPrefix(up.FileURL, "http://example.test/api/v1/uploads/"))
	assert.True(t, strings.HasPrefix(up.DeleteURL, up.FileURL+"&delete_key="))

	rr := s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.FileURL), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "hello world", rr.Body.String())
	assert.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
	assert.Equal(t, "11", rr.Header().Get("Content-Length"))
	assert.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))
	assert.Equal(t, `inline; filename=hello.txt`, rr.Header().Get("Content-Disposition"))
}

func TestUpload_AuthAndValidation(t *testing.T) {
	s := newTestServer(t, 16)
	account := s.register(t, "alice")

	tests := []struct {
		name        string
		token       string
		contentType string
		data        []byte
		status      int
	}{
		{"no token", "", "text/plain", []byte("x"), http.StatusUnauthorized},
		{"bad token", "Bearer nope", "text/plain", []byte("x"), http.StatusUnauthorized},
		{"raw token accepted", account.Token, "text/plain", []byte("x"), http.StatusCreated},
		{"unsupported type", account.Token, "application/x-msdownload", []byte("MZ"), http.StatusUnsupportedMediaType},
		{"too large", account.Token, "text/plain", bytes.Repeat([]byte("a"), 17), http.StatusRequestEntityTooLarge},
		{"body beyond slack", account.Token, "text/plain", bytes.Repeat([]byte("a"), 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(uploadRequest(t, tt.token, "f.txt", tt.contentType, tt.data))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	// missing file field
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader("plain"))
	req.Header.Set("Authorization", account.Token)
	rr := s.do(req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFetch_FailuresHideExistence(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	account := s.register(t, "alice")
	up := s.upload(t, account.Token, "secret")

	u, err := url.Parse(up.FileURL)
	require.NoError(t, err)
	path := u.Path

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing key", path, http.StatusBadRequest},
		{"wrong key", path + "?key=AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", http.StatusNotFound},
		{"unknown id", "/api/v1/uploads/nothing?key=abc", http.StatusNotFound},
		{"wrong delete key", localPath(t, up.FileURL) + "&delete_key=zzz", http.StatusNotFound},
		{"empty delete key", localPath(t, up.FileURL) + "&delete_key=", http.StatusNotFound},
	}

	var notFoundBodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rr.Code)
			if rr.Code == http.StatusNotFound {
				notFoundBodies = append(notFoundBodies, rr.Body.String())
			}
		})
	}

	// every 404 is byte-identical
	require.Len(t, notFoundBodies, 4)
	for _, body := range notFoundBodies[1:] {
		assert.Equal(t, notFoundBodies[0], body)
	}

	// the object is still readable after all of the above
	rr := s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.FileURL), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "secret", rr.Body.String())
}

func TestFetch_Orphaned(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	account := s.register(t, "alice")
	up := s.upload(t, account.Token, "secret")

	stored, err := s.repo.GetAccountByUsername(t.Context(), "alice")
	require.NoError(t, err)
	require.NoError(t, s.repo.DeleteAccount(t.Context(), stored.ID))

	rr := s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.FileURL), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteURL(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	account := s.register(t, "alice")
	up := s.upload(t, account.Token, "temporary")

	rr := s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.DeleteURL), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var msg api.MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Equal(t, "File deleted successfully.", msg.Message)

	rr = s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.FileURL), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListAndDeleteOwned(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	up := s.upload(t, alice.Token, "one")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	rr := s.do(req)
	require.Equal(t, http.StatusOK, rr.Code)

	var list []api.ObjectResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "hello.txt", list[0].OriginalName)
	assert.Equal(t, int64(3), list[0].SizeBytes)
	assert.NotContains(t, rr.Body.String(), "key")

	target := "/api/v1/uploads/" + list[0].ObjectID

	req = httptest.NewRequest(http.MethodDelete, target, nil)
	req.Header.Set("Authorization", bob.Token)
	assert.Equal(t, http.StatusNotFound, s.do(req).Code)

	req = httptest.NewRequest(http.MethodDelete, target, nil)
	req.Header.Set("Authorization", alice.Token)
	assert.Equal(t, http.StatusNoContent, s.do(req).Code)

	rr = s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.FileURL), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFetch_ServesContentTypeAsUploaded(t *testing.T) {
	s := newTestServer(t, sealedcontent.DefaultMaxFileSize)
	account := s.register(t, "alice")

	rr := s.do(uploadRequest(t, account.Token, "notes.txt", "text/plain; charset=utf-8", []byte("héllo")))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var up api.UploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &up))

	rr = s.do(httptest.NewRequest(http.MethodGet, localPath(t, up.FileURL), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "héllo", rr.Body.String())
}
