package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"affiliate-blog/internal/affiliate"
	"affiliate-blog/internal/audit"
	"affiliate-blog/internal/auth"
	"affiliate-blog/internal/authz"
	"affiliate-blog/internal/blog"
	"affiliate-blog/internal/config"
	"affiliate-blog/internal/guard"
	"affiliate-blog/internal/metrics"
	"affiliate-blog/internal/profile"
	"affiliate-blog/internal/realtime"
	"affiliate-blog/internal/seed"
	"affiliate-blog/internal/stats"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery"

type testApp struct {
	h        *Handlers
	router   *gin.Engine
	broker   *realtime.MemoryBroker
	audit    *audit.MemoryRepo
	sessions *auth.MemorySessionRepository
	streams  *MemoryStreamLimiter

	adminID  string
	viewerID string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithAccessTTL(t, time.Hour)
}

func newTestAppWithAccessTTL(t *testing.T, accessTTL time.Duration) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := realtime.NewMemoryBroker(nil)
	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret-test-secret-test-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	sessions := auth.NewMemorySessionRepository()
	provider := auth.NewProvider(mgr, auth.NewMemoryUserRepository(), sessions, broker, nil, auth.WithBcryptCost(bcrypt.MinCost))
	profiles := profile.NewService(profile.NewMemoryRepo(), broker, nil)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	posts := blog.NewService(blog.NewMemoryRepo(), broker, nil)
	programs := affiliate.NewService(affiliate.NewMemoryRepo(), broker, nil)
	st := stats.NewService(stats.NewMemoryRepo(&stats.Stats{ID: "stats-1"}), posts, provider, nil)
	auditRepo := audit.NewMemoryRepo()
	streams := NewMemoryStreamLimiter(3)

	h := &Handlers{
		Auth:      provider,
		Profiles:  profiles,
		Posts:     posts,
		Programs:  programs,
		Stats:     st,
		Seeder:    seed.New(posts, programs, st, nil),
		Audit:     audit.NewService(auditRepo, nil),
		Broker:    broker,
		Evaluator: authz.NewEvaluator(profiles, authz.WithRecorder(collector)),
		Policy:    guard.DefaultPolicy(),
		Metrics:   collector,
		Streams:   streams,
		Heartbeat: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router := NewRouter(ctx, h, RouterOptions{LoginRateRPS: 0.001, LoginRateBurst: 50, Gatherer: reg})

	app := &testApp{h: h, router: router, broker: broker, audit: auditRepo, sessions: sessions, streams: streams}
	app.adminID = app.signUp(t, "admin@example.com", "admin")
	app.viewerID = app.signUp(t, "viewer@example.com", "viewer")
	return app
}

func (a *testApp) signUp(t *testing.T, email, role string) string {
	t.Helper()
	u, err := a.h.Auth.SignUp(context.Background(), email, testPassword, nil)
	require.NoError(t, err)
	_, err = a.h.Profiles.SetRole(context.Background(), u.ID, role)
	require.NoError(t, err)
	return u.ID
}

func (a *testApp) token(t *testing.T, email string) string {
	t.Helper()
	pair, _, err := a.h.Auth.SignIn(context.Background(), email, testPassword)
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	require.Equal(t, code, w.Code, w.Body.String())
}

