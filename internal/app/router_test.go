package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/insight-compliance-api/internal/repository"
	"github.com/noah-isme/insight-compliance-api/internal/service"
	"github.com/noah-isme/insight-compliance-api/pkg/config"
)

func newRouterForTest(t *testing.T, env string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{Env: env, APIPrefix: "/api/v1"}
	logger := zap.NewNop()
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: service.NewMetricsService(),
		Auth: service.NewAuthService(nil, logger, service.AuthConfig{
			AccessTokenSecret: "router-secret",
			AccessTokenExpiry: time.Hour,
			Issuer:            "insight-test",
			AdminEmail:        "coordinator@example.org",
			AdminPasswordHash: string(hash),
			AdminName:         "Study Coordinator",
		}),
		CacheRepo: repository.NewCacheRepository(nil, cacheKeyPrefix, logger),
	}
	return NewRouter(c)
}

func serve(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterProbes(t *testing.T) {
	r := newRouterForTest(t, config.EnvDevelopment)

	w := serve(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache":"ok"`)

	w = serve(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterRequiresTokenOnStaffRoutes(t *testing.T) {
	r := newRouterForTest(t, config.EnvDevelopment)

	for _, path := range []string{
		"/api/v1/auth/me",
		"/api/v1/participants",
		"/api/v1/compliance/participants/1",
		"/api/v1/compliance/daily",
		"/api/v1/dashboard",
	} {
		w := serve(r, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouterLoginThenMe(t *testing.T) {
	r := newRouterForTest(t, config.EnvDevelopment)

	w := serve(r, http.MethodPost, "/api/v1/auth/login", `{"email":"Coordinator@Example.org","password":"s3cret-pass"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Data.AccessToken)

	w = serve(r, http.MethodGet, "/api/v1/auth/me", "", login.Data.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coordinator@example.org")
}

func TestRouterOmitsExportRoutesWhenDisabled(t *testing.T) {
	r := newRouterForTest(t, config.EnvDevelopment)

	w := serve(r, http.MethodGet, "/api/v1/export/some-token", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	r := newRouterForTest(t, config.EnvProduction)
	gin.SetMode(gin.TestMode)

	w := serve(r, http.MethodGet, "/docs/index.html", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
