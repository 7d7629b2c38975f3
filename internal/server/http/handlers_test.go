package http

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliceScenario(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"identifier": "alice",
		"password":   "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	set := cookies(rec)
	require.Contains(t, set, common.AccessTokenCookieName)
	require.Contains(t, set, common.RefreshTokenCookieName)
	for _, c := range set {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
		assert.NotEmpty(t, c.Value)
	}

	body := decode(t, rec)
	assert.Equal(t, float64(http.StatusOK), body["statusCode"])
	data := body["data"].(map[string]any)
	user := data["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotEmpty(t, user["_id"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "refreshToken")
	assert.Equal(t, set[common.AccessTokenCookieName].Value, data["accessToken"])
	r1 := set[common.RefreshTokenCookieName].Value
	assert.Equal(t, r1, data["refreshToken"])

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil,
		withCookie(common.RefreshTokenCookieName, r1))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := cookies(rec)
	r2 := rotated[common.RefreshTokenCookieName].Value
	assert.NotEmpty(t, r2)
	assert.NotEqual(t, r1, r2)
	data = decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, r2, data["refreshToken"])
	assert.NotEmpty(t, data["accessToken"])

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": r1})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "refresh token is expired or used", body["message"])

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": r2})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"wrong password", map[string]string{"identifier": "alice", "password": "nope"}, http.StatusUnauthorized},
		{"unknown identifier", map[string]string{"identifier": "carol", "password": "s3cret"}, http.StatusNotFound},
		{"missing identifier", map[string]string{"password": "s3cret"}, http.StatusBadRequest},
		{"missing password", map[string]string{"identifier": "alice"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/users/login", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
			assert.Equal(t, false, decode(t, rec)["success"])
		})
	}
}

func TestLogin_ByEmailField(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"email":    "ALICE@example.com",
		"password": "s3cret",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogin_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/users/login", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode(t, rec)["message"])
}

func TestRefresh_MissingAndExpired(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	out := env.login(t, "alice", "s3cret")

	rec := env.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ErrMissingToken.Error(), decode(t, rec)["message"])

	env.clock.Advance(240 * time.Hour)
	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil,
		withCookie(common.RefreshTokenCookieName, out.Data.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ErrTokenExpired.Error(), decode(t, rec)["message"])
}

func TestLogout_ClearsCookiesAndRevokes(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	out := env.login(t, "alice", "s3cret")

	rec := env.do(t, http.MethodPost, "/api/v1/users/logout", nil,
		withCookie(common.AccessTokenCookieName, out.Data.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := cookies(rec)[name]
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{
		"refreshToken": out.Data.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/users/logout", nil, withBearer(out.Data.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_RejectsIdentically(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	env.register(t, "bob", "bob@example.com", "hunter2")
	alice := env.login(t, "alice", "s3cret")
	bob := env.login(t, "bob", "hunter2")

	require.NoError(t, env.manager.Store().Delete(context.Background(), bob.Data.User["_id"].(string)))

	cases := map[string][]func(*http.Request){
		"missing":      nil,
		"malformed":    {withBearer("not-a-jwt")},
		"bad scheme":   {func(r *http.Request) { r.Header.Set("Authorization", "Basic "+alice.Data.AccessToken) }},
		"refresh kind": {withBearer(alice.Data.RefreshToken)},
		"deleted user": {withBearer(bob.Data.AccessToken)},
	}

	var bodies []string
	for name, opts := range cases {
		rec := env.do(t, http.MethodGet, "/api/v1/users/current-user", nil, opts...)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		bodies = append(bodies, rec.Body.String())
	}

	env.clock.Advance(15 * time.Minute)
	rec := env.do(t, http.MethodGet, "/api/v1/users/current-user", nil, withBearer(alice.Data.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	bodies = append(bodies, rec.Body.String())

	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
}

func TestGuard_CookieThenHeader(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	alice := env.login(t, "alice", "s3cret")

	rec := env.do(t, http.MethodGet, "/api/v1/users/current-user", nil,
		withCookie(common.AccessTokenCookieName, alice.Data.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "refreshToken")

	rec = env.do(t, http.MethodGet, "/api/v1/users/current-user", nil,
		withCookie(common.AccessTokenCookieName, alice.Data.AccessToken),
		withBearer("garbage"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/users/current-user", nil, withBearer(alice.Data.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegister_Multipart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doMultipart(t, http.MethodPost, "/api/v1/users/register",
		map[string]string{
			"fullname": "Alice Liddell",
			"email":    "alice@example.com",
			"username": "Alice",
			"password": "s3cret",
		},
		map[string]string{"avatar": "me.PNG", "coverImage": "cover.jpg"},
	)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	user := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "Alice Liddell", user["fullName"])
	assert.Regexp(t, `^https://cdn\.example/users/[0-9a-f]+\.png$`, user["avatar"])
	assert.Regexp(t, `\.jpg$`, user["coverImage"])
	assert.Len(t, env.uploader.uploads, 2)

	left, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRegister_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")

	rec := env.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "Other",
		"email":    "ALICE@example.com",
		"username": "alice2",
		"password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user with email or username already exists", decode(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": " ",
		"email":    "carol@example.com",
		"username": "carol",
		"password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	alice := env.login(t, "alice", "s3cret")
	auth := withBearer(alice.Data.AccessToken)

	rec := env.do(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "wrong", "newPassword": "n3w"}, auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid old password", decode(t, rec)["message"])

	rec = env.do(t, http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "s3cret", "newPassword": "n3w"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.login(t, "alice", "n3w")

	// token state survives a password change
	rec = env.do(t, http.MethodGet, "/api/v1/users/current-user", nil, auth)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	env.register(t, "bob", "bob@example.com", "hunter2")
	alice := env.login(t, "alice", "s3cret")
	auth := withBearer(alice.Data.AccessToken)

	rec := env.do(t, http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"fullName": "Alice L.", "email": "Alice@Wonder.land"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	user := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Alice L.", user["fullName"])
	assert.Equal(t, "alice@wonder.land", user["email"])

	rec = env.do(t, http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"fullName": "Alice", "email": "bob@example.com"}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email is already in use", decode(t, rec)["message"])

	rec = env.do(t, http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"fullName": "Alice"}, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateImages(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "s3cret")
	alice := env.login(t, "alice", "s3cret")
	auth := withBearer(alice.Data.AccessToken)

	rec := env.doMultipart(t, http.MethodPatch, "/api/v1/users/avatar", nil,
		map[string]string{"avatar": "new.png"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Regexp(t, `\.png$`, decode(t, rec)["data"].(map[string]any)["avatar"])

	rec = env.doMultipart(t, http.MethodPatch, "/api/v1/users/cover-image", nil,
		map[string]string{"coverImage": "wide.jpg"}, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Regexp(t, `\.jpg$`, decode(t, rec)["data"].(map[string]any)["coverImage"])

	rec = env.doMultipart(t, http.MethodPatch, "/api/v1/users/avatar", nil, nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "avatar file is missing", decode(t, rec)["message"])

	rec = env.doMultipart(t, http.MethodPatch, "/api/v1/users/avatar", nil,
		map[string]string{"avatar": "new.png"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	left, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gophaccount_http_requests_total")
}

func TestRegister_OverlongPasswordIsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"fullName": "Alice",
		"email":    "alice@example.com",
		"username": "alice",
		"password": strings.Repeat("x", 100),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec)["message"], "password")
}
