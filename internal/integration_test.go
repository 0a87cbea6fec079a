package internal

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"campus-admin/config"
	"campus-admin/internal/api"
	"campus-admin/internal/auth"
	"campus-admin/internal/credential"
	"campus-admin/internal/diff"
	"campus-admin/internal/entity"
	"campus-admin/internal/lifecycle"
	"campus-admin/internal/metrics"
	"campus-admin/internal/model"
	"campus-admin/internal/query"
	"campus-admin/internal/screen"
	"campus-admin/internal/store"
	"campus-admin/internal/transport"
)

// TestScreenAgainstBackend drives a screen through the HTTP transport against
// the reference backend on an in-memory SQLite database.
func TestScreenAgainstBackend(t *testing.T) {
	// --- Test Setup ---

	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to the in-memory database: %v", err)
	}
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(model.All()...))

	// 2. Backend with auth and metrics.
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateBurst = 1000
	cfg.Auth.JWTSecret = "integration"
	authMgr, err := auth.NewManager(cfg.Auth)
	require.NoError(t, err)
	router, err := api.NewRouter(store.NewGormStore(testDB), cfg.Server, authMgr, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	server := httptest.NewServer(router)
	defer server.Close()

	// 3. Client side: transport, credential and screen.
	token, _, err := authMgr.Issue("integration", "")
	require.NoError(t, err)
	creds := &credential.Mutable{}
	creds.Set(token)

	cfg.Client.BaseURL = server.URL
	tr, err := transport.NewHTTP(cfg.Client, credential.Expiring{Inner: creds}, zap.NewNop())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewLifecycle(reg)
	require.NoError(t, err)
	s := screen.New("integration", tr, creds, screen.WithRecorder(recorder))
	defer s.Unmount()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// --- Build the hierarchy ---
	uni, err := s.Add(ctx, entity.University, nil, entity.Doc{"name": "State"})
	require.NoError(t, err)
	eng, err := s.Add(ctx, entity.College, uni, entity.Doc{"name": "Engineering"})
	require.NoError(t, err)
	arts, err := s.Add(ctx, entity.College, uni.ID(), entity.Doc{"name": "Arts"})
	require.NoError(t, err)

	require.NoError(t, s.Mount(ctx, entity.University, entity.College, entity.Department, entity.Program))

	cs, err := s.Add(ctx, entity.Department, eng.ID(), entity.Doc{"name": "Computer Science"})
	require.NoError(t, err)
	hist, err := s.Add(ctx, entity.Department, arts, entity.Doc{"name": "History"})
	require.NoError(t, err)

	ai, err := s.Add(ctx, entity.Program, cs.ID(), entity.Doc{"name": "AI", "duration": 2, "level": "postgraduate"})
	require.NoError(t, err)

	// The local programs set and the server's agree.
	progs := func(deptID string) []string {
		for _, d := range s.Collection(entity.Department) {
			if d.ID() == deptID {
				var out []string
				ids, _ := d[entity.KeyPrograms].([]any)
				for _, p := range ids {
					out = append(out, p.(string))
				}
				return out
			}
		}
		return nil
	}
	assert.Equal(t, []string{ai.ID()}, progs(cs.ID()))
	require.NoError(t, s.Reload(ctx, entity.Department))
	assert.Equal(t, []string{ai.ID()}, progs(cs.ID()))

	// --- Rows resolve parent names ---
	rows := s.Rows(entity.Department, screen.View{
		Sort: []query.Order{{Key: screen.NameKey(entity.College)}},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "Arts", rows[0].Names["collegeName"])
	assert.Equal(t, "Engineering", rows[1].Names["collegeName"])

	// --- Save sends only what changed ---
	edited := ai.Clone()
	edited["department"] = hist.ID()
	moved, err := s.Save(ctx, entity.Program, ai, edited)
	require.NoError(t, err)
	assert.Equal(t, hist.ID(), moved["department"])
	assert.Equal(t, float64(1), moved[entity.KeyRevision])

	require.NoError(t, s.Reload(ctx, entity.Department))
	assert.Empty(t, progs(cs.ID()))
	assert.Equal(t, []string{ai.ID()}, progs(hist.ID()))

	_, err = s.Save(ctx, entity.Program, moved, moved.Clone())
	assert.ErrorIs(t, err, diff.ErrNoChanges)

	// --- Server-side failures surface their message ---
	// A screen that never loaded colleges leaves the parent check to the server.
	fresh := screen.New("fresh", tr, creds)
	_, err = fresh.Add(ctx, entity.Department, "C404", entity.Doc{"name": "Ghost"})
	require.Error(t, err)
	assert.Equal(t, "College not found", lifecycle.UserMessage(err))

	// --- Delete keeps the programs set in sync ---
	require.ErrorIs(t, s.Delete(ctx, entity.Program, ai.ID(), false), screen.ErrNotConfirmed)
	require.NoError(t, s.Delete(ctx, entity.Program, ai.ID(), true))
	assert.Empty(t, progs(hist.ID()))

	// --- Without a token nothing is sent ---
	creds.Clear()
	_, err = s.Add(ctx, entity.College, uni.ID(), entity.Doc{"name": "Law"})
	assert.ErrorIs(t, err, lifecycle.ErrTokenMissing)
	assert.Equal(t, lifecycle.Rejected, s.Status(entity.College, lifecycle.Create).State)

	colleges, err := tr.FetchList(ctx, entity.College, nil)
	require.NoError(t, err)
	assert.Len(t, colleges, 2)

	n, err := testutil.GatherAndCount(reg, "campus_admin_request_transitions_total")
	require.NoError(t, err)
	assert.Positive(t, n)
}
