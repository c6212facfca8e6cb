package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/chat"
	"github.com/aussiebroadwan/confirm/internal/confirm/directory"
	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
	"github.com/aussiebroadwan/confirm/internal/confirm/notify"
	"github.com/aussiebroadwan/confirm/internal/confirm/service"
	"github.com/aussiebroadwan/confirm/internal/confirm/store/drivers/memory"
	"github.com/aussiebroadwan/confirm/pkg/confirmsdk"
	"github.com/aussiebroadwan/confirm/pkg/jwtx"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "chat"

var challengeCode = regexp.MustCompile(`"confirm ([a-f0-9]{6})"$`)

type testServer struct {
	url    string
	signer *jwtx.HS256
}

func (s *testServer) client(t *testing.T, userID string) *confirmsdk.Client {
	t.Helper()
	token, err := s.signer.Sign(jwtx.NewSenderClaims(userID, userID, testIssuer, time.Hour, time.Now()))
	require.NoError(t, err)
	return confirmsdk.NewClient(s.url, token)
}

func newTestServer(t *testing.T, st *failingStore) *testServer {
	t.Helper()

	logger := slogx.Nop()
	m := metrics.New()
	dir := directory.NewMemory()

	registry := service.NewRegistry(dir, logger, m)
	t.Cleanup(registry.Reset)

	enrollments := &service.EnrollmentService{
		Store:    st.Enrollments(),
		Notifier: notify.NewWriter(&strings.Builder{}),
		Logger:   logger,
		Metrics:  m,
		Issuer:   "confirm-test",
		Secure:   true,
	}
	dispatcher := &service.Dispatcher{
		Registry:         registry,
		Enrollments:      enrollments,
		Logger:           logger,
		Metrics:          m,
		DefaultTwoFactor: domain.TwoFactorBlock,
	}

	robot := chat.NewRobot(dispatcher, enrollments, logger)
	spec := domain.NewRouteSpec()
	require.NoError(t, robot.Register(chat.Route{
		Name:    "deploy",
		Pattern: regexp.MustCompile(`^deploy (\S+)$`),
		Handler: func(ctx context.Context, res *chat.Response) error {
			res.Reply(res.Expand("Deploying $1"))
			return nil
		},
		Confirmation: &spec,
	}))

	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), testIssuer)
	require.NoError(t, err)

	router := NewRouter(signer, "test", st, robot, registry, m, logger)
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{url: srv.URL, signer: signer}
}

// failingStore wraps the memory store so readiness can be failed on demand.
type failingStore struct {
	*memory.Store
	pingErr error
}

func (s *failingStore) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.Store.Ping(ctx)
}

func TestMessagesConfirmFlow(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: memory.NewStore()})
	ctx := context.Background()

	alice := srv.client(t, "u-alice")
	bob := srv.client(t, "u-bob")

	replies, err := alice.SendMessage(ctx, "deploy web")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Regexp(t, challengeCode, replies[0])
	code := challengeCode.FindStringSubmatch(replies[0])[1]

	replies, err = bob.SendMessage(ctx, "confirm "+code)
	require.NoError(t, err)
	require.Equal(t, []string{"Deploying web"}, replies)

	replies, err = bob.SendMessage(ctx, "confirm "+code)
	require.NoError(t, err)
	require.Contains(t, replies[0], "is not a valid confirmation code")
}

func TestMessagesErrors(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: memory.NewStore()})
	ctx := context.Background()

	t.Run("unknown command", func(t *testing.T) {
		_, err := srv.client(t, "u-alice").SendMessage(ctx, "make me a sandwich")
		require.ErrorIs(t, err, confirmsdk.ErrUnknownCommand)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := srv.client(t, "u-alice").SendMessage(ctx, "   ")
		require.ErrorIs(t, err, confirmsdk.ErrInvalidRequest)
	})

	t.Run("missing token", func(t *testing.T) {
		resp, err := http.Post(srv.url+"/v1/messages", "application/json", strings.NewReader(`{"text":"deploy web"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("token from another issuer", func(t *testing.T) {
		other, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "someone-else")
		require.NoError(t, err)
		token, err := other.Sign(jwtx.NewSenderClaims("u-alice", "alice", "someone-else", time.Hour, time.Now()))
		require.NoError(t, err)

		_, err = confirmsdk.NewClient(srv.url, token).SendMessage(ctx, "deploy web")
		var apiErr *confirmsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	st := &failingStore{Store: memory.NewStore()}
	srv := newTestServer(t, st)
	ctx := context.Background()
	client := confirmsdk.NewClient(srv.url, "")

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Store)

	st.pingErr = errors.New("disk on fire")
	_, err = client.GetReadiness(ctx)
	var apiErr *confirmsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &failingStore{Store: memory.NewStore()})

	_, err := srv.client(t, "u-alice").SendMessage(context.Background(), "deploy web")
	require.NoError(t, err)

	resp, err := http.Get(srv.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `confirm_challenges_total{decision="challenge_1fa"} 1`)
	require.Contains(t, string(body), "confirm_pending_commands 1")
}
