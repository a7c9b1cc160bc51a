package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"mindlog/internal/cache"
	"mindlog/internal/config"
	"mindlog/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testPassword = "Correct-Horse-42"

type testEnv struct {
	srv   *Server
	app   *fiber.App
	mr    *miniredis.Miniredis
	store *testutil.MemStore
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:            "test-secret-with-at-least-32-characters",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		ImageMaxUploadSizeMB: 5,
		ImageMaxDimension:    2048,
		GraphCacheSize:       16,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	store := testutil.NewMemStore()
	srv, err := NewServerWithDeps(newTestConfig(), db, rdb, store)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), mr: mr, store: store}
}

// do sends a JSON request and decodes a JSON response into out when set.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req, token, out)
}

func (e *testEnv) send(t *testing.T, req *http.Request, token string, out any) int {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, out), string(raw))
		}
	}
	return resp.StatusCode
}

// signup registers name and returns its token and user id.
func (e *testEnv) signup(t *testing.T, name string) (string, uint) {
	t.Helper()
	var res AuthResponse
	status := e.do(t, http.MethodPost, "/api/auth/signup", "", fiber.Map{
		"username": name,
		"email":    name + "@example.com",
		"password": testPassword,
	}, &res)
	require.Equal(t, http.StatusCreated, status)
	return res.Token, res.User.ID
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, path string, payload any, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		require.NoError(t, w.WriteField("payload", string(raw)))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
