package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avolkov/mediatube/internal/testutil"
)

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	mc := testutil.StartMongoContainer(t)
	t.Cleanup(mc.Terminate)

	t.Run("login ok", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			registerAlice(t, ts)

			resp := postJSON(t, ts.URL+"/login", `{"username": "alice", "password": "StrongEnoughPassword"}`, nil)
			body := requireStatus(t, resp, http.StatusOK)

			type loginData struct {
				User struct {
					Username string `json:"username"`
					Email    string `json:"email"`
				} `json:"user"`
				AccessToken  string `json:"accessToken"`
				RefreshToken string `json:"refreshToken"`
			}
			data, e := decodeData[loginData](t, body)

			require.True(t, e.Success)
			require.Equal(t, "User logged in successfully", e.Message)
			require.Equal(t, "alice", data.User.Username)
			require.NotEmpty(t, data.AccessToken)
			require.NotEmpty(t, data.RefreshToken)
			require.NotContains(t, body, `"password"`, "password hash must never leak")

			require.Len(t, resp.Cookies(), 2)
			for _, cookie := range resp.Cookies() {
				require.Contains(t, []string{"accessToken", "refreshToken"}, cookie.Name)
				require.True(t, cookie.HttpOnly, "auth cookie should be HttpOnly")
				require.True(t, cookie.Secure, "auth cookie should be Secure")
				require.Equal(t, "/", cookie.Path)
				require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
				require.NotEmpty(t, cookie.Value)
			}
		})
	})

	t.Run("login by email", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			registerAlice(t, ts)

			resp := postJSON(t, ts.URL+"/login", `{"email": "alice@x.com", "password": "StrongEnoughPassword"}`, nil)
			requireStatus(t, resp, http.StatusOK)
		})
	})

	t.Run("login unknown user", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			resp := postJSON(t, ts.URL+"/login", `{"username": "nobody", "password": "whatever"}`, nil)
			body := requireStatus(t, resp, http.StatusNotFound)

			require.JSONEq(t, `
				{
					"statusCode": 404,
					"message": "User not found",
					"success": false
				}`, body)
			require.Empty(t, resp.Cookies(), "no cookies should be set on login error")
		})
	})

	t.Run("login wrong password", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			registerAlice(t, ts)

			resp := postJSON(t, ts.URL+"/login", `{"username": "alice", "password": "WrongPassword"}`, nil)
			body := requireStatus(t, resp, http.StatusUnauthorized)

			require.JSONEq(t, `
				{
					"statusCode": 401,
					"message": "Invalid user credentials",
					"success": false
				}`, body)
			require.Empty(t, resp.Cookies())
		})
	})

	t.Run("login without identifiers fails validation", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			resp := postJSON(t, ts.URL+"/login", `{"password": "StrongEnoughPassword"}`, nil)
			body := requireStatus(t, resp, http.StatusBadRequest)

			e := decodeEnvelope(t, body)
			require.Equal(t, "Request validation failed", e.Message)
		})
	})

	t.Run("refresh rotates the pair", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			cookies := mustRegisterAndLogin(t, ts, "alice", "StrongEnoughPassword")
			firstRefresh := cookieByName(t, cookies, "refreshToken")
			firstAccess := cookieByName(t, cookies, "accessToken")

			resp := postJSON(t, ts.URL+"/refresh-token", "", []*http.Cookie{firstRefresh})
			body := requireStatus(t, resp, http.StatusOK)

			e := decodeEnvelope(t, body)
			require.Equal(t, "Access token refreshed", e.Message)

			require.Len(t, resp.Cookies(), 2)
			secondRefresh := cookieByName(t, resp.Cookies(), "refreshToken")
			secondAccess := cookieByName(t, resp.Cookies(), "accessToken")
			require.NotEqual(t, firstRefresh.Value, secondRefresh.Value, "refresh token should change after refresh")
			require.NotEqual(t, firstAccess.Value, secondAccess.Value, "access token should change after refresh")
		})
	})

	t.Run("refresh with token in body", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			cookies := mustRegisterAndLogin(t, ts, "alice", "StrongEnoughPassword")
			refreshCookie := cookieByName(t, cookies, "refreshToken")

			resp := postJSON(t, ts.URL+"/refresh-token", `{"refreshToken": "`+refreshCookie.Value+`"}`, nil)
			body := requireStatus(t, resp, http.StatusOK)

			e := decodeEnvelope(t, body)
			require.Equal(t, "Access token refreshed", e.Message)
		})
	})

	t.Run("refresh twice fails", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			cookies := mustRegisterAndLogin(t, ts, "alice", "StrongEnoughPassword")
			refreshCookie := cookieByName(t, cookies, "refreshToken")

			resp := postJSON(t, ts.URL+"/refresh-token", "", []*http.Cookie{refreshCookie})
			requireStatus(t, resp, http.StatusOK)

			resp = postJSON(t, ts.URL+"/refresh-token", "", []*http.Cookie{refreshCookie})
			body := requireStatus(t, resp, http.StatusUnauthorized)

			require.JSONEq(t, `
				{
					"statusCode": 401,
					"message": "Refresh Token is expired or used",
					"success": false
				}`, body)
		})
	})

	t.Run("refresh without cookie", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			resp := postJSON(t, ts.URL+"/refresh-token", "", nil)
			body := requireStatus(t, resp, http.StatusUnauthorized)

			require.JSONEq(t, `
				{
					"statusCode": 401,
					"message": "Unauthorized request",
					"success": false
				}`, body)
		})
	})

	t.Run("refresh with garbage cookie", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			garbage := &http.Cookie{Name: "refreshToken", Value: "not-even-a-jwt"}

			resp := postJSON(t, ts.URL+"/refresh-token", "", []*http.Cookie{garbage})
			body := requireStatus(t, resp, http.StatusUnauthorized)

			require.JSONEq(t, `
				{
					"statusCode": 401,
					"message": "Invalid refresh token",
					"success": false
				}`, body)
		})
	})

	t.Run("logout", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			cookies := mustRegisterAndLogin(t, ts, "alice", "StrongEnoughPassword")
			refreshCookie := cookieByName(t, cookies, "refreshToken")

			resp := postJSON(t, ts.URL+"/logout", "", cookies)
			body := requireStatus(t, resp, http.StatusOK)

			e := decodeEnvelope(t, body)
			require.Equal(t, "User logged out successfully", e.Message)

			require.Len(t, resp.Cookies(), 2, "both token cookies should be cleared")
			for _, cookie := range resp.Cookies() {
				require.Empty(t, cookie.Value)
				require.Negative(t, cookie.MaxAge)
			}

			// The old refresh token is revoked, not just the cookies
			resp = postJSON(t, ts.URL+"/refresh-token", "", []*http.Cookie{refreshCookie})
			requireStatus(t, resp, http.StatusUnauthorized)
		})
	})

	t.Run("logout without auth", func(t *testing.T) {
		withServer(mc, t, func(ts testServer) {
			resp := postJSON(t, ts.URL+"/logout", "", nil)
			body := requireStatus(t, resp, http.StatusUnauthorized)

			require.JSONEq(t, `
				{
					"statusCode": 401,
					"message": "Unauthorized request",
					"success": false
				}`, body)
		})
	})
}

func registerAlice(t *testing.T, ts testServer) {
	t.Helper()

	resp := registerUser(t, ts, registerForm{
		FullName: "Alice Smith",
		Email:    "alice@x.com",
		Username: "alice",
		Password: "StrongEnoughPassword",
		Avatar:   "avatar.png",
	})
	requireStatus(t, resp, http.StatusCreated)
}

func cookieByName(t *testing.T, cookies []*http.Cookie, name string) *http.Cookie {
	t.Helper()

	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}

	t.Fatalf("cookie %q not found", name)
	return nil
}
