package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"campus-admin/config"
	"campus-admin/internal/api"
	"campus-admin/internal/auth"
	"campus-admin/internal/lifecycle"
	"campus-admin/internal/model"
	"campus-admin/internal/store"
)

const testSecret = "cli-test-secret"

func newBackend(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file:adminctl?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))

	mgr, err := auth.NewManager(config.AuthConfig{JWTSecret: testSecret, Issuer: "campus-admin", TokenTTL: time.Hour})
	require.NoError(t, err)
	router, err := api.NewRouter(store.NewGormStore(db),
		config.ServerConfig{RateLimitPerSec: 1000, RateBurst: 1000, CacheTTL: time.Minute},
		mgr, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

// run executes adminctl with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv(config.JWTSecretEnv, testSecret)
	t.Setenv(config.TokenEnv, "")
	var out, errOut bytes.Buffer
	root := (&app{}).rootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m), s)
	return m
}

func TestAdminctl_EndToEnd(t *testing.T) {
	base := newBackend(t)

	token, err := run(t, "token", "--subject", "tester")
	require.NoError(t, err)
	token = strings.TrimSpace(token)
	require.NotEmpty(t, token)

	conn := []string{"--base-url", base, "--token", token}
	cli := func(args ...string) (string, error) {
		return run(t, append(args, conn...)...)
	}

	out, err := cli("add", "universities", "--set", "name=State")
	require.NoError(t, err)
	uni := decode(t, out)["_id"].(string)

	out, err = cli("add", "college", "--parent", uni, "--set", "name=Engineering")
	require.NoError(t, err)
	college := decode(t, out)["_id"].(string)

	out, err = cli("add", "departments", "--parent", college,
		"--set", "name=Computer Science", "--set", "head.name=Ada", "--set", "head.phone=0123")
	require.NoError(t, err)
	dept := decode(t, out)["_id"].(string)

	out, err = cli("add", "programs", "--parent", dept, "--set", "name=AI", "--set", "duration=2")
	require.NoError(t, err)
	prog := decode(t, out)["_id"].(string)

	out, err = cli("list", "departments", "--columns", "head.name")
	require.NoError(t, err)
	assert.Contains(t, out, "COLLEGE")
	assert.Contains(t, out, "Computer Science")
	assert.Contains(t, out, "Engineering")
	assert.Contains(t, out, "Ada")

	out, err = cli("update", "departments", dept, "--set", "head.name=Grace")
	require.NoError(t, err)
	updated := decode(t, out)
	assert.Equal(t, map[string]any{"name": "Grace", "phone": "0123"}, updated["head"])

	out, err = cli("update", "departments", dept, "--set", "head.name=Grace")
	require.NoError(t, err)
	assert.Equal(t, "no changes made\n", out)

	_, err = cli("update", "programs", prog, "--set", "duration=11")
	require.Error(t, err)
	assert.Equal(t, "duration must be less than or equal to 10", describe(err))

	_, err = cli("delete", "programs", prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without --yes")

	out, err = cli("delete", "programs", prog, "--yes")
	require.NoError(t, err)
	assert.Equal(t, "deleted program "+prog+"\n", out)

	out, err = cli("list", "programs", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	// Writes without a token never reach the server.
	_, err = run(t, "add", "universities", "--set", "name=Other", "--base-url", base)
	require.Error(t, err)
	assert.Equal(t, lifecycle.ErrTokenMissing.Error(), describe(err))
}

func TestMerge(t *testing.T) {
	doc := map[string]any{"name": "CS", "head": map[string]any{"name": "Ada", "phone": "1"}}
	merge(doc, map[string]any{"head": map[string]any{"name": "Grace"}, "email": "x@y.z"})
	assert.Equal(t, map[string]any{
		"name":  "CS",
		"head":  map[string]any{"name": "Grace", "phone": "1"},
		"email": "x@y.z",
	}, doc)
}

func TestParentTypes(t *testing.T) {
	assert.Nil(t, parentTypes("universities"))
	assert.Equal(t, 3, len(parentTypes("students")))
}
