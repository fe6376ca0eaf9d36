package login_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/taskspace/internal/app/features/login"
	"github.com/dalemusser/taskspace/internal/app/services/accounts"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/app/system/ratelimit"
	"github.com/dalemusser/taskspace/internal/domain/models"
	"github.com/dalemusser/taskspace/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHandler(t *testing.T, secure bool) *login.Handler {
	t.Helper()
	return newLimitedHandler(t, secure, nil, nil)
}

func newLimitedHandler(t *testing.T, secure bool, limiter *ratelimit.LoginLimiter, logins login.LoginRecorder) *login.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "", "", 0, secure, zap.NewNop())
	require.NoError(t, err)
	svc := accounts.New(testutil.NewFakeUserStore(), &testutil.FakeHasher{}, zap.NewNop())
	return login.NewHandler(svc, sm, limiter, logins, zap.NewNop())
}

func tokenCookie(t *testing.T, rec *testutil.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	t.Fatal("no token cookie set")
	return nil
}

var aliceBody = map[string]string{"email": "alice@example.com", "name": "Alice", "password": "correct-horse"}

func TestHandleRegister(t *testing.T) {
	h := newHandler(t, false)

	rec := testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", aliceBody))
	rec.AssertStatus(t, http.StatusCreated)

	var u models.PublicUser
	env := testutil.DecodeEnvelope(t, rec.Body.Bytes(), &u)
	require.Equal(t, "User registered successfully", env.Message)
	require.Equal(t, "alice@example.com", u.Email)
	require.NotContains(t, rec.Body.String(), "hashed:")

	c := tokenCookie(t, rec)
	require.NotEmpty(t, c.Value)
	require.True(t, c.HttpOnly)
	require.False(t, c.Secure)

	rec = testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", aliceBody))
	rec.AssertStatus(t, http.StatusConflict)
	require.Empty(t, rec.Result().Cookies())
}

func TestHandleRegister_SecureCookieInProd(t *testing.T) {
	h := newHandler(t, true)

	rec := testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", aliceBody))
	rec.AssertStatus(t, http.StatusCreated)

	c := tokenCookie(t, rec)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteNoneMode, c.SameSite)
}

func TestHandleRegister_BadBody(t *testing.T) {
	h := newHandler(t, false)

	rec := testutil.NewRecorder()
	req := testutil.NewRequest(http.MethodPost, "/auth/register")
	h.HandleRegister(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleLogin(t *testing.T) {
	h := newHandler(t, false)
	rec := testutil.NewRecorder()
	h.HandleRegister(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", aliceBody))
	rec.AssertStatus(t, http.StatusCreated)

	rec = testutil.NewRecorder()
	h.HandleLogin(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "ALICE@example.com", "password": "correct-horse"}))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Logged in successfully")
	tokenCookie(t, rec)

	rec = testutil.NewRecorder()
	h.HandleLogin(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "alice@example.com", "password": "nope-nope"}))
	rec.AssertStatus(t, http.StatusUnauthorized)
	env := testutil.DecodeEnvelope(t, rec.Body.Bytes(), nil)
	require.Equal(t, "Invalid credentials", env.Message)
	require.Nil(t, env.Error)
}

func TestHandleLogin_Throttled(t *testing.T) {
	h := newLimitedHandler(t, false, ratelimit.NewLoginLimiter(100, 2), nil)

	attempt := func(password string) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		h.HandleLogin(rec, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
			map[string]string{"email": "alice@example.com", "password": password}))
		return rec
	}

	attempt("guess-one").AssertStatus(t, http.StatusUnauthorized)
	attempt("guess-two").AssertStatus(t, http.StatusUnauthorized)

	rec := attempt("guess-three")
	rec.AssertStatus(t, http.StatusTooManyRequests)
	rec.AssertContains(t, "Too many login attempts")
}

func TestSignInsAreRecorded(t *testing.T) {
	logins := &testutil.FakeLoginStore{}
	h := newLimitedHandler(t, false, nil, logins)

	w := testutil.NewRecorder()
	h.HandleRegister(w, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", aliceBody))
	w.AssertStatus(t, http.StatusCreated)

	w = testutil.NewRecorder()
	h.HandleLogin(w, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "alice@example.com", "password": "wrong-guess"}))
	w.AssertStatus(t, http.StatusUnauthorized)

	w = testutil.NewRecorder()
	h.HandleLogin(w, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]string{"email": "alice@example.com", "password": "correct-horse"}))
	w.AssertStatus(t, http.StatusOK)

	require.Equal(t, []string{models.LoginMethodRegister, models.LoginMethodPassword}, logins.Methods())
}

func TestRecordFailureDoesNotFailLogin(t *testing.T) {
	h := newLimitedHandler(t, false, nil, &testutil.FakeLoginStore{CreateErr: errors.New("db down")})

	w := testutil.NewRecorder()
	h.HandleRegister(w, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", aliceBody))
	w.AssertStatus(t, http.StatusCreated)
	tokenCookie(t, w)
}
