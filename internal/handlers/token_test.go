package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/intervita/sessiond/internal/token"
)

func newTokenRouter(t *testing.T, mutate ...func(*token.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := token.Config{
		APIKey:          "api-key",
		APISecret:       "api-secret",
		RequireDocument: true,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	svc, err := token.NewService(cfg)
	require.NoError(t, err)

	handler, err := NewTokenHandler(svc)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/token", handler.Issue)
	r.POST("/api/token", handler.Issue)
	return r
}

func TestIssueQueryStyleWithoutPayloadRejected(t *testing.T) {
	router := newTokenRouter(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/token?roomName=interview-1&participantName=alice", nil)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "Resume data is required", body["error"])
}

func TestIssueBodyStyleWithPayload(t *testing.T) {
	router := newTokenRouter(t)

	payload := map[string]any{
		"roomName":        "interview-1",
		"participantName": "alice",
		"resumeData":      map[string]any{"skills": []string{"python"}},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		Identity    string `json:"identity"`
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.Equal(t, "alice", result.Identity)
	require.NotEmpty(t, result.AccessToken)
}

func TestIssueBodyStyleGeneratesNames(t *testing.T) {
	router := newTokenRouter(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token",
		strings.NewReader(`{"resumeData":{"skills":["go"]}}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		Identity    string `json:"identity"`
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.Regexp(t, `^identity-[A-Za-z0-9]{4}$`, result.Identity)
	require.NotEmpty(t, result.AccessToken)
}

func TestIssueBodyStyleWithoutPayloadRejected(t *testing.T) {
	router := newTokenRouter(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token",
		strings.NewReader(`{"roomName":"interview-1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, recorder.Body.String(), "Resume data is required")
}

func TestIssueMalformedBodyRejected(t *testing.T) {
	router := newTokenRouter(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(`{"roomName":`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestIssueQueryStyleWhenRuleDisabled(t *testing.T) {
	router := newTokenRouter(t, func(cfg *token.Config) {
		cfg.RequireDocument = false
	})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/token?participantName=bob", nil)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"identity":"bob"`)
}

func TestIssueRejectsOverlongRoomName(t *testing.T) {
	router := newTokenRouter(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/token?roomName="+strings.Repeat("r", 200), nil)
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
