package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		SigningKey:     "test-signing-key",
		Audience:       "smallpie",
		TTL:            5 * time.Minute,
		IssueLimit:     100,
		IssueWindow:    time.Minute,
		ValidateLimit:  100,
		ValidateWindow: time.Minute,
	}
}

func TestIssueAndValidate(t *testing.T) {
	s := NewService(testConfig())

	issued, err := s.Issue(ScopeStream, "", "client-a")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if issued.SessionID == "" {
		t.Error("Issue() generated no session id")
	}

	payload, err := s.Validate(issued.Token, ScopeStream, "client-a")
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if payload.SessionID != issued.SessionID {
		t.Errorf("payload session id = %q, want %q", payload.SessionID, issued.SessionID)
	}
	if payload.Scope != ScopeStream {
		t.Errorf("payload scope = %q, want %q", payload.Scope, ScopeStream)
	}
}

func TestIssuePreservesSessionID(t *testing.T) {
	s := NewService(testConfig())

	issued, err := s.Issue(ScopeUpload, "existing-session", "client-a")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if issued.SessionID != "existing-session" {
		t.Errorf("SessionID = %q, want existing-session", issued.SessionID)
	}
}

func TestIssueRejectsUnknownScope(t *testing.T) {
	s := NewService(testConfig())

	if _, err := s.Issue("admin", "", "client-a"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Issue(unknown scope) error = %v, want ErrInvalidScope", err)
	}
}

func TestValidateScopeMismatch(t *testing.T) {
	s := NewService(testConfig())

	issued, _ := s.Issue(ScopeUpload, "", "client-a")
	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("Validate() error = %v, want ErrInvalidScope", err)
	}
}

func TestValidateAudienceMismatch(t *testing.T) {
	issuer := NewService(testConfig())

	otherCfg := testConfig()
	otherCfg.Audience = "someone-else"
	validator := NewService(otherCfg)

	issued, _ := issuer.Issue(ScopeStream, "", "client-a")
	if _, err := validator.Validate(issued.Token, ScopeStream, "client-a"); !errors.Is(err, ErrInvalidAudience) {
		t.Errorf("Validate() error = %v, want ErrInvalidAudience", err)
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	s := NewService(testConfig())

	issued, _ := s.Issue(ScopeStream, "", "client-a")

	payloadB64, _, _ := strings.Cut(issued.Token, ".")
	forged := payloadB64 + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	if _, err := s.Validate(forged, ScopeStream, "client-a"); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Validate(tampered) error = %v, want ErrInvalidSignature", err)
	}
}

func TestValidateMalformedToken(t *testing.T) {
	s := NewService(testConfig())

	for _, tok := range []string{"", "no-dot", "bad base64!.sig", "x.y.z"} {
		if _, err := s.Validate(tok, ScopeStream, "client-a"); err == nil {
			t.Errorf("Validate(%q) succeeded, want error", tok)
		}
	}
}

func TestOneShotViaRevokeByID(t *testing.T) {
	s := NewService(testConfig())

	issued, _ := s.Issue(ScopeStream, "", "client-a")

	payload, err := s.Validate(issued.Token, ScopeStream, "client-a")
	if err != nil {
		t.Fatalf("first Validate() error: %v", err)
	}

	s.RevokeID(payload.TokenID)

	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); !errors.Is(err, ErrInactive) {
		t.Errorf("second Validate() error = %v, want ErrInactive", err)
	}
}

func TestRevokeSessionDeactivatesAllTokens(t *testing.T) {
	s := NewService(testConfig())

	first, _ := s.Issue(ScopeStream, "shared", "client-a")
	second, _ := s.Issue(ScopeUpload, "shared", "client-a")
	other, _ := s.Issue(ScopeStream, "other", "client-a")

	s.RevokeSession("shared")
	// revoking again is not an error
	s.RevokeSession("shared")

	if _, err := s.Validate(first.Token, ScopeStream, "client-a"); !errors.Is(err, ErrInactive) {
		t.Errorf("first token error = %v, want ErrInactive", err)
	}
	if _, err := s.Validate(second.Token, ScopeUpload, "client-a"); !errors.Is(err, ErrInactive) {
		t.Errorf("second token error = %v, want ErrInactive", err)
	}
	if _, err := s.Validate(other.Token, ScopeStream, "client-a"); err != nil {
		t.Errorf("other session token unexpectedly invalid: %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	s := NewService(testConfig())

	issued, _ := s.Issue(ScopeStream, "", "client-a")

	// Shift the validator's clock past expiry; the signature is still good.
	s.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); !errors.Is(err, ErrExpired) {
		t.Errorf("Validate(expired) error = %v, want ErrExpired", err)
	}
}

func TestValidateExpiryBoundary(t *testing.T) {
	s := NewService(testConfig())

	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issuedAt }
	s.registry.now = s.now
	issued, err := s.Issue(ScopeStream, "", "client-a")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// One second before expiry the token still validates.
	s.now = func() time.Time { return time.Unix(issued.ExpiredAt-1, 0) }
	s.registry.now = s.now
	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); err != nil {
		t.Errorf("Validate just before expiry: %v", err)
	}

	// At the expiry instant itself it does not.
	s.now = func() time.Time { return time.Unix(issued.ExpiredAt, 0) }
	s.registry.now = s.now
	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); !errors.Is(err, ErrExpired) {
		t.Errorf("Validate at expiry instant error = %v, want ErrExpired", err)
	}
}

func TestRegistryExpiryBoundary(t *testing.T) {
	r := NewRegistry()
	const exp = int64(1000)
	r.Add(Payload{TokenID: "a", ExpiresAt: exp})

	r.now = func() time.Time { return time.Unix(exp-1, 0) }
	if !r.IsActive("a") {
		t.Error("token inactive one second before expiry")
	}

	r.now = func() time.Time { return time.Unix(exp, 0) }
	if r.IsActive("a") {
		t.Error("token active at its expiry instant")
	}

	// Observing expiry prunes the entry for good.
	r.now = func() time.Time { return time.Unix(exp-1, 0) }
	if r.IsActive("a") {
		t.Error("expired token resurrected by clock rollback")
	}
}

func TestIssueRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.IssueLimit = 3
	cfg.IssueWindow = time.Minute
	s := NewService(cfg)

	for i := 0; i < 3; i++ {
		if _, err := s.Issue(ScopeStream, "", "client-a"); err != nil {
			t.Fatalf("Issue() #%d error: %v", i, err)
		}
	}

	if _, err := s.Issue(ScopeStream, "", "client-a"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("excess Issue() error = %v, want ErrRateLimited", err)
	}

	// A different client identity has its own bucket.
	if _, err := s.Issue(ScopeStream, "", "client-b"); err != nil {
		t.Errorf("Issue() for other client error: %v", err)
	}
}

func TestValidateRateLimitIndependentFromIssue(t *testing.T) {
	cfg := testConfig()
	cfg.ValidateLimit = 1
	s := NewService(cfg)

	issued, _ := s.Issue(ScopeStream, "", "client-a")

	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if _, err := s.Validate(issued.Token, ScopeStream, "client-a"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("excess Validate() error = %v, want ErrRateLimited", err)
	}

	// Issuance is unaffected by the validation bucket.
	if _, err := s.Issue(ScopeStream, "", "client-a"); err != nil {
		t.Errorf("Issue() after validation limit error: %v", err)
	}
}
