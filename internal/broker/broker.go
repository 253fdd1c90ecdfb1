package broker

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/intervita/sessiond/pkg/errors"
	"github.com/intervita/sessiond/pkg/logger"
)

// Mode selects the credential-acquisition strategy.
type Mode string

const (
	ModeCloud  Mode = "cloud"
	ModeManual Mode = "manual"
	ModeEnv    Mode = "env"
)

// ConnectionState is the single source of truth for "should the application
// attempt a live session, and with what credential". It is only ever replaced
// as a whole; ShouldConnect true implies Token is non-empty.
type ConnectionState struct {
	Mode          Mode
	ServerURL     string
	Token         string
	ShouldConnect bool
	Metadata      map[string]string
}

// CloudProvider is the managed token-generation collaborator used by cloud
// mode. Its internals are outside the core.
type CloudProvider interface {
	GenerateToken(ctx context.Context) (string, error)
	ServerURL() string
}

// NotifyFunc receives non-fatal, user-visible warnings.
type NotifyFunc func(message string)

// Config holds the static configuration the broker draws credentials from.
type Config struct {
	// ServerURL is the transport endpoint used by env mode. Env mode cannot
	// run without it.
	ServerURL string

	// TokenEndpoint is the credential issuance service URL, e.g.
	// "http://localhost:8000/api/token".
	TokenEndpoint string

	// RoomName and ParticipantName are optional static names forwarded with
	// env-mode credential requests.
	RoomName        string
	ParticipantName string

	// ManualURL and ManualToken feed manual mode directly.
	ManualURL   string
	ManualToken string
}

// Option customises a Broker.
type Option func(*Broker)

// WithCloudProvider attaches the managed token-generation collaborator.
func WithCloudProvider(provider CloudProvider) Option {
	return func(b *Broker) {
		b.cloud = provider
	}
}

// WithNotifier attaches the channel used for non-fatal warnings.
func WithNotifier(notify NotifyFunc) Option {
	return func(b *Broker) {
		b.notify = notify
	}
}

// WithHTTPClient overrides the HTTP client used for issuance calls.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Broker) {
		if client != nil {
			b.issuer.httpClient = client
		}
	}
}

// Broker drives credential acquisition and owns the connection state.
type Broker struct {
	cfg    Config
	cloud  CloudProvider
	notify NotifyFunc
	issuer *issueClient
	log    *zap.Logger

	mu    sync.Mutex
	seq   uint64
	state ConnectionState
}

// New constructs a Broker. The state starts empty with ShouldConnect false.
func New(cfg Config, opts ...Option) *Broker {
	b := &Broker{
		cfg:    cfg,
		issuer: newIssueClient(cfg.TokenEndpoint),
		log:    logger.WithModule("broker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect resolves a credential for the requested mode and atomically replaces
// the connection state on success. Overlapping calls are fenced by a request
// counter: only the most recent call may publish its resolution.
//
// Cloud-mode failures are reported through the notifier and leave the state
// untouched; env-mode configuration and issuance errors propagate to the
// caller; manual mode cannot fail.
func (b *Broker) Connect(ctx context.Context, mode Mode, payload map[string]any) error {
	b.mu.Lock()
	b.seq++
	seq := b.seq
	b.mu.Unlock()

	var serverURL, accessToken string

	switch mode {
	case ModeCloud:
		if b.cloud == nil {
			b.warn("Cloud connections are not configured for this deployment.")
			return nil
		}
		serverURL = b.cloud.ServerURL()

		token, err := b.cloud.GenerateToken(ctx)
		if err != nil {
			b.log.Warn("cloud token generation failed", zap.Error(err))
			b.warn("Failed to generate token, you may need to increase your role in this cloud project.")
			return nil
		}
		accessToken = token

	case ModeEnv:
		if b.cfg.ServerURL == "" {
			return appErrors.NewConfiguration("transport endpoint is not configured for env mode")
		}
		serverURL = b.cfg.ServerURL

		cred, err := b.issuer.issue(ctx, issueRequest{
			RoomName:        b.cfg.RoomName,
			ParticipantName: b.cfg.ParticipantName,
			ResumeData:      payload,
		})
		if err != nil {
			return err
		}
		accessToken = cred.AccessToken

	case ModeManual:
		serverURL = b.cfg.ManualURL
		accessToken = b.cfg.ManualToken

	default:
		return appErrors.NewValidation(fmt.Sprintf("unknown connection mode %q", mode))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if seq != b.seq {
		b.log.Debug("stale connect resolution discarded", zap.String("mode", string(mode)))
		return nil
	}

	b.state = ConnectionState{
		Mode:          mode,
		ServerURL:     serverURL,
		Token:         accessToken,
		ShouldConnect: true,
		Metadata:      map[string]string{"role": "user"},
	}

	b.log.Info("connection resolved",
		zap.String("mode", string(mode)),
		zap.String("server_url", serverURL),
	)
	return nil
}

// Disconnect clears ShouldConnect while keeping the last-known token and
// endpoint, so the previous session's identity stays displayable. It also
// advances the request counter, so credential requests still in flight cannot
// re-enable the connection afterwards.
func (b *Broker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.state.ShouldConnect = false
}

// State returns a copy of the current connection state.
func (b *Broker) State() ConnectionState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state.Metadata != nil {
		meta := make(map[string]string, len(state.Metadata))
		for k, v := range state.Metadata {
			meta[k] = v
		}
		state.Metadata = meta
	}
	return state
}

func (b *Broker) warn(message string) {
	if b.notify != nil {
		b.notify(message)
	}
}
