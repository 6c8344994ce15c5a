package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/avolkov/mediatube/internal/handlers"
	"github.com/avolkov/mediatube/internal/handlers/middleware"
	"github.com/avolkov/mediatube/internal/repository"
	"github.com/avolkov/mediatube/internal/repository/mongodb"
	"github.com/avolkov/mediatube/internal/service/auth"
	"github.com/avolkov/mediatube/internal/service/auth/tokenmanager"
	"github.com/avolkov/mediatube/internal/service/user"
	"github.com/avolkov/mediatube/internal/testutil"
)

// stubUploader keeps tests off the real media host
type stubUploader struct{}

func (u stubUploader) Upload(_ context.Context, localPath string) (string, error) {
	return "https://cdn.test/" + filepath.Base(localPath), nil
}

type testServer struct {
	// Base url including the /api/v1/users prefix
	URL string

	Auth    *auth.AuthService
	Users   *user.UserService
	Storage repository.Storage
}

// withServer runs an http server with the production router and services,
// backed by an isolated database
func withServer(mc testutil.MongoContainer, t *testing.T, fn func(ts testServer)) {
	t.Helper()

	testutil.WithDatabase(mc, t, func(database *mongo.Database) {
		storage := mongodb.NewStorage(database)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			AccessSecret:  "test-access-secret",
			RefreshSecret: "test-refresh-secret",
		}, storage.User())
		require.NoError(t, err, "token manager should be created without errors")

		authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
		require.NoError(t, err, "auth service starting error")

		userService := user.NewService(nil, storage, stubUploader{}, nil)

		router := handlers.NewRouter(handlers.NewAuth(authService), handlers.NewUser(userService), middleware.Auth(authService))
		srv := httptest.NewServer(router)
		t.Cleanup(srv.Close)

		fn(testServer{
			URL:     srv.URL + "/api/v1/users",
			Auth:    authService,
			Users:   userService,
			Storage: storage,
		})
	})
}

// registerForm builds the multipart registration request body
// Pass an empty avatar name to omit the file part
type registerForm struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     string
	CoverImage string
}

func (f registerForm) encode(t *testing.T) (body *bytes.Buffer, contentType string) {
	t.Helper()

	body = &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fields := map[string]string{
		"fullName": f.FullName,
		"email":    f.Email,
		"username": f.Username,
		"password": f.Password,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		require.NoError(t, mw.WriteField(name, value))
	}

	files := map[string]string{"avatar": f.Avatar, "coverImage": f.CoverImage}
	for field, filename := range files {
		if filename == "" {
			continue
		}
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("not really a png"))
		require.NoError(t, err)
	}

	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func registerUser(t *testing.T, ts testServer, f registerForm) *http.Response {
	t.Helper()

	body, contentType := f.encode(t)
	resp, err := http.Post(ts.URL+"/register", contentType, body)
	require.NoError(t, err)
	return resp
}

// mustRegisterAndLogin registers the user and returns the login response cookies
func mustRegisterAndLogin(t *testing.T, ts testServer, username string, password string) []*http.Cookie {
	t.Helper()

	resp := registerUser(t, ts, registerForm{
		FullName: "Test User",
		Email:    username + "@x.com",
		Username: username,
		Password: password,
		Avatar:   "avatar.png",
	})
	requireStatus(t, resp, http.StatusCreated)

	resp = postJSON(t, ts.URL+"/login", `{"username": "`+username+`", "password": "`+password+`"}`, nil)
	requireStatus(t, resp, http.StatusOK)
	return resp.Cookies()
}

func postJSON(t *testing.T, url string, data string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	return doJSON(t, http.MethodPost, url, data, cookies)
}

func doJSON(t *testing.T, method string, url string, data string, cookies []*http.Cookie) *http.Response {
	t.Helper()

	var body io.Reader
	if data != "" {
		body = bytes.NewBufferString(data)
	}

	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, url string, cookies []*http.Cookie) *http.Response {
	t.Helper()
	return doJSON(t, http.MethodGet, url, "", cookies)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return string(body)
}

func requireStatus(t *testing.T, resp *http.Response, expected int) string {
	t.Helper()

	body := readBody(t, resp)
	require.Equalf(t, expected, resp.StatusCode, "not expected code. Body: %s", body)
	return body
}

// envelope mirrors the response wrapper with data kept raw for later decoding
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, body string) envelope {
	t.Helper()

	var e envelope
	require.NoError(t, json.Unmarshal([]byte(body), &e))
	return e
}

func decodeData[T any](t *testing.T, body string) (T, envelope) {
	t.Helper()

	e := decodeEnvelope(t, body)
	var data T
	require.NoError(t, json.Unmarshal(e.Data, &data))
	return data, e
}
