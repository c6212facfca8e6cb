package confirm_test

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/confirm/pkg/confirmsdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupConfirmContainer(t, nil)
	defer cleanup()

	client := confirmsdk.NewClient(baseURL, "")

	live, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Store)
}

func TestMetricsEndpoint(t *testing.T) {
	baseURL, cleanup := setupConfirmContainer(t, nil)
	defer cleanup()

	send(t, clientAs(t, baseURL, "u-bob"), "deploy api")

	resp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "confirm_pending_commands 1")
}

func TestUnauthenticatedMessage(t *testing.T) {
	baseURL, cleanup := setupConfirmContainer(t, nil)
	defer cleanup()

	_, err := confirmsdk.NewClient(baseURL, "not-a-jwt").SendMessage(t.Context(), "ping")
	var apiErr *confirmsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

// TestRateLimitMessages checks the per-sender limit bounds confirmation and
// one-time password guessing.
func TestRateLimitMessages(t *testing.T) {
	baseURL, cleanup := setupConfirmContainer(t, map[string]string{
		"RATELIMIT_MESSAGE_REQUESTS": "10",
		"RATELIMIT_MESSAGE_BURST":    "10",
	})
	defer cleanup()

	bob := clientAs(t, baseURL, "u-bob")
	for i := range 10 {
		_, err := bob.SendMessage(t.Context(), "confirm 000000")
		require.NoError(t, err, "request %d should not be limited", i+1)
	}

	_, err := bob.SendMessage(t.Context(), "confirm 000000")
	require.ErrorIs(t, err, confirmsdk.ErrRateLimited)

	// Another sender has their own budget.
	require.Equal(t, "pong", send(t, clientAs(t, baseURL, "u-alice"), "ping"))
}
