package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scopes a token can be bound to.
const (
	ScopeStream = "stream"
	ScopeUpload = "upload"
)

// Payload is the signed content of a session token.
type Payload struct {
	TokenID   string `json:"jti"`
	SessionID string `json:"session_id"`
	Scope     string `json:"scope"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Issued is the result of minting a token.
type Issued struct {
	Token     string
	SessionID string
	ExpiredAt int64
}

// Config for the token service.
type Config struct {
	SigningKey     string
	Audience       string
	TTL            time.Duration
	IssueLimit     int
	IssueWindow    time.Duration
	ValidateLimit  int
	ValidateWindow time.Duration
}

// Service issues and validates scoped, time-boxed session tokens. A token is
// valid while its id is registered as active and not expired. Validation
// does not consume: callers wanting one-shot semantics revoke by id
// immediately after a successful validation.
type Service struct {
	config   Config
	registry *Registry

	issueLimiter    *RateLimiter
	validateLimiter *RateLimiter

	now func() time.Time
}

func NewService(config Config) *Service {
	return &Service{
		config:          config,
		registry:        NewRegistry(),
		issueLimiter:    NewRateLimiter(config.IssueLimit, config.IssueWindow),
		validateLimiter: NewRateLimiter(config.ValidateLimit, config.ValidateWindow),
		now:             time.Now,
	}
}

func validScope(scope string) bool {
	return scope == ScopeStream || scope == ScopeUpload
}

// Issue mints a signed token bound to scope. If sessionID is empty a fresh
// session id is generated. clientID keys the issuance rate limit.
func (s *Service) Issue(scope, sessionID, clientID string) (Issued, error) {
	if !validScope(scope) {
		return Issued{}, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}
	if !s.issueLimiter.Allow(clientID) {
		return Issued{}, fmt.Errorf("%w for token issue", ErrRateLimited)
	}

	now := s.now().Unix()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	payload := Payload{
		TokenID:   uuid.NewString(),
		SessionID: sessionID,
		Scope:     scope,
		Audience:  s.config.Audience,
		IssuedAt:  now,
		ExpiresAt: now + int64(s.config.TTL/time.Second),
	}

	token, err := s.sign(payload)
	if err != nil {
		return Issued{}, err
	}

	s.registry.Add(payload)
	return Issued{Token: token, SessionID: sessionID, ExpiredAt: payload.ExpiresAt}, nil
}

// Validate checks signature, audience, scope, expiry and active status, in
// that order, and returns the payload. The token stays active afterwards.
func (s *Service) Validate(tokenStr, expectedScope, clientID string) (Payload, error) {
	if !s.validateLimiter.Allow(clientID) {
		return Payload{}, fmt.Errorf("%w for token validation", ErrRateLimited)
	}

	payload, err := s.verify(tokenStr)
	if err != nil {
		return Payload{}, err
	}

	if payload.Audience != s.config.Audience {
		return Payload{}, ErrInvalidAudience
	}
	if payload.Scope != expectedScope {
		return Payload{}, fmt.Errorf("%w: have %s, want %s", ErrInvalidScope, payload.Scope, expectedScope)
	}
	// A token is valid strictly before its expiry instant.
	if s.now().Unix() >= payload.ExpiresAt {
		return Payload{}, ErrExpired
	}
	if !s.registry.IsActive(payload.TokenID) {
		return Payload{}, ErrInactive
	}

	return payload, nil
}

func (s *Service) RevokeSession(sessionID string) {
	s.registry.RevokeSession(sessionID)
}

func (s *Service) RevokeID(tokenID string) {
	s.registry.RevokeID(tokenID)
}

// sign serializes the payload and appends an HMAC-SHA256 signature:
// base64url(json) + "." + base64url(mac).
func (s *Service) sign(payload Payload) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal token payload: %w", err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(payloadJSON)
	mac := hmac.New(sha256.New, []byte(s.config.SigningKey))
	mac.Write([]byte(payloadB64))
	sigB64 := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return payloadB64 + "." + sigB64, nil
}

// verify checks the signature in constant time and decodes the payload.
func (s *Service) verify(tokenStr string) (Payload, error) {
	payloadB64, sigB64, ok := strings.Cut(tokenStr, ".")
	if !ok {
		return Payload{}, ErrMalformedToken
	}

	providedSig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return Payload{}, ErrMalformedToken
	}

	mac := hmac.New(sha256.New, []byte(s.config.SigningKey))
	mac.Write([]byte(payloadB64))
	if !hmac.Equal(mac.Sum(nil), providedSig) {
		return Payload{}, ErrInvalidSignature
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Payload{}, ErrMalformedToken
	}

	var payload Payload
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return Payload{}, ErrMalformedToken
	}
	return payload, nil
}
