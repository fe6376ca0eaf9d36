package logout_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/taskspace/internal/app/features/logout"
	"github.com/dalemusser/taskspace/internal/app/system/auth"
	"github.com/dalemusser/taskspace/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleLogout_ExpiresCookie(t *testing.T) {
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "", "", 0, false, zap.NewNop())
	require.NoError(t, err)
	h := logout.NewHandler(sm, zap.NewNop())

	rec := testutil.NewRecorder()
	h.HandleLogout(rec, testutil.NewAuthenticatedRequest(http.MethodPost, "/auth/logout", testutil.NewTestUser("alice@example.com")))
	rec.AssertStatus(t, http.StatusOK)

	env := testutil.DecodeEnvelope(t, rec.Body.Bytes(), nil)
	require.Equal(t, "Logged out successfully", env.Message)
	require.Contains(t, rec.Body.String(), `"data":null`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "token", cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}

func TestHandleLogout_NoSessionNeeded(t *testing.T) {
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "", "", 0, false, zap.NewNop())
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	logout.NewHandler(sm, zap.NewNop()).HandleLogout(rec, testutil.NewRequest(http.MethodPost, "/auth/logout"))
	rec.AssertStatus(t, http.StatusOK)
}
