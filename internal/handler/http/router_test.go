package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/cypherlabdev/kalshi-best-bets/internal/mocks"
	"github.com/cypherlabdev/kalshi-best-bets/internal/service"
)

// TestRouter_AccessLog tests that each request is logged with its request id
func TestRouter_AccessLog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	auth, err := NewAuthenticator(AuthConfig{Secret: "k1"})
	require.NoError(t, err)
	feed := service.NewFeedService(mocks.NewMockFeedCache(ctrl), zerolog.Nop())
	router := NewRouter(RouterConfig{CORSOrigins: []string{"*"}}, NewFeedHandler(feed, auth, zerolog.Nop()), nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "request", line["message"])
	assert.Equal(t, "http", line["component"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/healthz", line["path"])
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Greater(t, line["bytes"], float64(0))
}

// TestRouter_AccessLogLevel tests that access lines are debug only
func TestRouter_AccessLogLevel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	auth, err := NewAuthenticator(AuthConfig{Secret: "k1"})
	require.NoError(t, err)
	feed := service.NewFeedService(mocks.NewMockFeedCache(ctrl), zerolog.Nop())
	router := NewRouter(RouterConfig{}, NewFeedHandler(feed, auth, zerolog.Nop()), nil, logger)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Empty(t, buf.String())
}
