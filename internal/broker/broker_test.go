package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intervita/sessiond/internal/token"
	appErrors "github.com/intervita/sessiond/pkg/errors"
)

// newIssuanceServer runs a real issuance handler so broker tests exercise the
// full request/response contract.
func newIssuanceServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc, err := token.NewService(token.Config{
		APIKey:          "api-key",
		APISecret:       "api-secret",
		RequireDocument: true,
	})
	require.NoError(t, err)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input := token.IssueInput{
			RoomName:        r.URL.Query().Get("roomName"),
			ParticipantName: r.URL.Query().Get("participantName"),
		}
		if r.Method == http.MethodPost {
			var body struct {
				RoomName        string         `json:"roomName"`
				ParticipantName string         `json:"participantName"`
				ResumeData      map[string]any `json:"resumeData"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			input.RoomName = body.RoomName
			input.ParticipantName = body.ParticipantName
			input.Payload = body.ResumeData
		}

		cred, err := svc.Issue(input)
		if err != nil {
			appErr := appErrors.FromError(err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(appErr.StatusCode)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": appErr.Message})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cred)
	}))
}

func TestConnectEnvWithPayload(t *testing.T) {
	server := newIssuanceServer(t)
	defer server.Close()

	b := New(Config{
		ServerURL:       "wss://rooms.example.com",
		TokenEndpoint:   server.URL,
		RoomName:        "interview-1",
		ParticipantName: "alice",
	})

	err := b.Connect(context.Background(), ModeEnv, map[string]any{"skills": []string{"python"}})
	require.NoError(t, err)

	state := b.State()
	require.True(t, state.ShouldConnect)
	require.NotEmpty(t, state.Token)
	require.Equal(t, ModeEnv, state.Mode)
	require.Equal(t, "wss://rooms.example.com", state.ServerURL)
	require.Equal(t, "user", state.Metadata["role"])
}

func TestConnectEnvWithoutPayloadRejected(t *testing.T) {
	server := newIssuanceServer(t)
	defer server.Close()

	b := New(Config{
		ServerURL:     "wss://rooms.example.com",
		TokenEndpoint: server.URL,
	})

	err := b.Connect(context.Background(), ModeEnv, nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	state := b.State()
	require.False(t, state.ShouldConnect)
	require.Empty(t, state.Token)
}

func TestConnectEnvWithoutEndpointIsFatal(t *testing.T) {
	b := New(Config{TokenEndpoint: "http://localhost:0"})

	err := b.Connect(context.Background(), ModeEnv, map[string]any{"k": "v"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConfiguration.Code, appErrors.FromError(err).Code)
}

func TestConnectManual(t *testing.T) {
	b := New(Config{
		ManualURL:   "wss://manual.example.com",
		ManualToken: "static-token",
	})

	require.NoError(t, b.Connect(context.Background(), ModeManual, nil))

	state := b.State()
	require.True(t, state.ShouldConnect)
	require.Equal(t, "static-token", state.Token)
	require.Equal(t, "wss://manual.example.com", state.ServerURL)
}

func TestConnectCloudFailureNotifiesWithoutError(t *testing.T) {
	var warnings []string

	b := New(Config{},
		WithCloudProvider(&stubCloud{err: errors.New("quota exceeded")}),
		WithNotifier(func(message string) { warnings = append(warnings, message) }),
	)

	err := b.Connect(context.Background(), ModeCloud, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	state := b.State()
	require.False(t, state.ShouldConnect)
	require.Empty(t, state.Token)
}

func TestConnectCloudSuccess(t *testing.T) {
	b := New(Config{}, WithCloudProvider(&stubCloud{token: "cloud-token", url: "wss://cloud.example.com"}))

	require.NoError(t, b.Connect(context.Background(), ModeCloud, nil))

	state := b.State()
	require.True(t, state.ShouldConnect)
	require.Equal(t, "cloud-token", state.Token)
	require.Equal(t, "wss://cloud.example.com", state.ServerURL)
}

func TestConnectUnknownModeRejected(t *testing.T) {
	b := New(Config{})

	err := b.Connect(context.Background(), Mode("p2p"), nil)
	require.Error(t, err)
}

func TestDisconnectKeepsLastCredential(t *testing.T) {
	b := New(Config{
		ManualURL:   "wss://manual.example.com",
		ManualToken: "static-token",
	})

	require.NoError(t, b.Connect(context.Background(), ModeManual, nil))
	b.Disconnect()

	state := b.State()
	require.False(t, state.ShouldConnect)
	require.Equal(t, "static-token", state.Token)
	require.Equal(t, "wss://manual.example.com", state.ServerURL)
}

func TestDisconnectWithoutConnect(t *testing.T) {
	b := New(Config{})
	b.Disconnect()

	require.False(t, b.State().ShouldConnect)
}

func TestLateResolutionDiscardedAfterDisconnect(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"identity":"alice","accessToken":"late-token"}`))
	}))
	defer server.Close()

	b := New(Config{
		ServerURL:     "wss://rooms.example.com",
		TokenEndpoint: server.URL,
	})

	done := make(chan error, 1)
	go func() {
		done <- b.Connect(context.Background(), ModeEnv, map[string]any{"k": "v"})
	}()

	// Disconnect while the credential request is still in flight.
	<-started
	b.Disconnect()
	close(release)
	require.NoError(t, <-done)

	state := b.State()
	require.False(t, state.ShouldConnect)
	require.Empty(t, state.Token)
}

func TestStateReturnsCopy(t *testing.T) {
	b := New(Config{ManualURL: "wss://x", ManualToken: "tok"})
	require.NoError(t, b.Connect(context.Background(), ModeManual, nil))

	state := b.State()
	state.Metadata["role"] = "admin"

	require.Equal(t, "user", b.State().Metadata["role"])
}

type stubCloud struct {
	token string
	url   string
	err   error
}

func (s *stubCloud) GenerateToken(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s *stubCloud) ServerURL() string { return s.url }
