package app_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/app"
	"github.com/stockroom/stockroom/internal/shared"
	"github.com/stockroom/stockroom/internal/source"
	_ "github.com/stockroom/stockroom/testing"
)

func TestInTestModeFromImportedPackage(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SOURCE_KIND", " Postgres ")
	t.Setenv("REPORT_TIMEZONE", "UTC")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, app.SourcePostgres, cfg.SourceKind)
	require.Equal(t, 0.10, cfg.ReportExpenseRatio)
	require.Equal(t, 5*time.Minute, cfg.ReportCacheTTL)
	require.False(t, cfg.ArchiveEnabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	base := func() app.Config {
		return app.Config{SessionSecret: "x", SourceKind: app.SourceHTTP, SourceBaseURL: "http://backend", ReportExpenseRatio: 0.1}
	}

	cfg := base()
	cfg.SourceKind = "ftp"
	require.ErrorContains(t, cfg.Validate(), "SOURCE_KIND")

	cfg = base()
	cfg.ReportExpenseRatio = 1
	require.ErrorContains(t, cfg.Validate(), "REPORT_EXPENSE_RATIO")

	cfg = base()
	cfg.ReportTimezone = "Mars/Olympus"
	require.ErrorContains(t, cfg.Validate(), "REPORT_TIMEZONE")

	cfg = base()
	cfg.SourceBaseURL = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	require.NoError(t, cfg.Validate())
}

func TestIdentityMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "sid", time.Hour, false)

	var seen shared.Identity
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, found = shared.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := app.IdentityMiddleware(nil, sessions)(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.False(t, found)

	sess, err := sessions.Create(context.Background(), httptest.NewRecorder(), shared.Identity{UserID: "9", Role: shared.RoleAdmin})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, found)
	require.Equal(t, "9", seen.UserID)
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := app.NewRouter(app.RouterParams{
		Config: &app.Config{AppEnv: "production"},
		Checks: map[string]app.HealthCheck{
			"postgres": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), `"redis":"connection refused"`)
}

func TestLoggerHonoursFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := app.NewLoggerTo(&buf, &app.Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNewReportSourceByKind(t *testing.T) {
	cfg := &app.Config{SourceKind: app.SourceHTTP, SourceBaseURL: "http://inventory.local/api", SourceTimeout: time.Second}
	src, err := app.NewReportSource(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &source.HTTPSource{}, src)

	cfg.SourceKind = app.SourcePostgres
	_, err = app.NewReportSource(cfg, nil)
	require.ErrorContains(t, err, "database pool")

	cfg.SourceKind = "ftp"
	_, err = app.NewReportSource(cfg, nil)
	require.Error(t, err)
}

func TestNewReportServiceWiresCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &app.Config{SourceKind: app.SourceHTTP, SourceBaseURL: "http://inventory.local/api", ReportTimezone: "UTC", ReportCacheTTL: time.Minute}
	svc, err := app.NewReportService(ctx, cfg, nil, client, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, svc.Cache())

	svc, err = app.NewReportService(ctx, cfg, nil, nil, slog.Default())
	require.NoError(t, err)
	require.Nil(t, svc.Cache())

	cfg.ReportTimezone = "Mars/Olympus"
	_, err = app.NewReportService(ctx, cfg, nil, nil, slog.Default())
	require.Error(t, err)
}
