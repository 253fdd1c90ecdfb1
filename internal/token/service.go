package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/intervita/sessiond/pkg/errors"
	"github.com/intervita/sessiond/pkg/random"
)

const (
	// DefaultTTL defines the fallback validity period for access tokens.
	DefaultTTL = 6 * time.Hour

	// DefaultMaxMetadataBytes bounds the serialized payload embedded in a token.
	DefaultMaxMetadataBytes = 64 * 1024

	// MissingDocumentMessage is the exact rejection text clients match on.
	MissingDocumentMessage = "Resume data is required"
)

// Config bundles the configuration required to build a Service.
type Config struct {
	APIKey           string
	APISecret        string
	TTL              time.Duration
	RequireDocument  bool
	MaxMetadataBytes int
	Clock            func() time.Time
}

// Grant is the capability scope bound into an issued credential. All four
// capabilities are always granted together; no partial-grant mode exists.
type Grant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	CanPublish     bool   `json:"canPublish,omitempty"`
	CanPublishData bool   `json:"canPublishData,omitempty"`
	CanSubscribe   bool   `json:"canSubscribe,omitempty"`
}

// Claims is the wire layout of an issued credential: a video grant plus the
// serialized document payload carried as opaque metadata.
type Claims struct {
	Video    *Grant `json:"video,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// IssueInput holds the parameters of one credential request.
type IssueInput struct {
	RoomName        string
	ParticipantName string
	Payload         map[string]any
}

// Credential is the issued identity/token pair returned to callers.
type Credential struct {
	Identity    string `json:"identity"`
	Room        string `json:"-"`
	AccessToken string `json:"accessToken"`
}

// Service mints scoped, time-bound access credentials.
type Service struct {
	apiKey     string
	secret     []byte
	ttl        time.Duration
	requireDoc bool
	maxMeta    int
	now        func() time.Time
}

// NewService constructs a Service when provided with the required signing configuration.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, appErrors.NewConfiguration("auth.api_key and auth.api_secret must be configured")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	maxMeta := cfg.MaxMetadataBytes
	if maxMeta <= 0 {
		maxMeta = DefaultMaxMetadataBytes
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &Service{
		apiKey:     cfg.APIKey,
		secret:     []byte(cfg.APISecret),
		ttl:        ttl,
		requireDoc: cfg.RequireDocument,
		maxMeta:    maxMeta,
		now:        now,
	}, nil
}

// Issue resolves room and identity, builds the full capability grant and signs
// the credential. A missing payload is rejected while the admission rule is
// enabled; see Config.RequireDocument.
func (s *Service) Issue(input IssueInput) (*Credential, error) {
	room := input.RoomName
	if room == "" {
		room = fmt.Sprintf("room-%s-%s", random.MustAlphanumeric(4), random.MustAlphanumeric(4))
	}

	identity := input.ParticipantName
	if identity == "" {
		identity = fmt.Sprintf("identity-%s", random.MustAlphanumeric(4))
	}

	metadata, err := s.encodePayload(input.Payload)
	if err != nil {
		return nil, err
	}

	now := s.now()
	claims := &Claims{
		Video: &Grant{
			Room:           room,
			RoomJoin:       true,
			CanPublish:     true,
			CanPublishData: true,
			CanSubscribe:   true,
		},
		Metadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			ID:        identity,
			Issuer:    s.apiKey,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, appErrors.Wrap(err, "sign access token")
	}

	return &Credential{
		Identity:    identity,
		Room:        room,
		AccessToken: signed,
	}, nil
}

// Validate parses and verifies an issued credential, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: parse: %w", err)
	}

	if claims.Issuer != s.apiKey {
		return nil, errors.New("token: invalid issuer")
	}

	if claims.Subject == "" {
		return nil, errors.New("token: missing identity claim")
	}

	return &claims, nil
}

func (s *Service) encodePayload(payload map[string]any) (string, error) {
	if payload == nil {
		if s.requireDoc {
			return "", appErrors.NewValidation(MissingDocumentMessage)
		}
		return "", nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", appErrors.NewValidation("Resume data is not serializable").WithInternal(err)
	}

	if len(encoded) > s.maxMeta {
		return "", appErrors.NewValidation(fmt.Sprintf("Resume data exceeds the %d byte limit", s.maxMeta))
	}

	return string(encoded), nil
}
