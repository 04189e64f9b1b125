package jwt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/minichat/relay/pkg/auth"
)

// testKeyPair holds the RSA key pair used throughout the tests.
var testKeyPair *rsa.PrivateKey

func init() {
	var err error
	testKeyPair, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
}

// testKID is the key ID used for the test key pair.
const testKID = "test-key-1"

// jwksHandler serves the test public key as a JWKS and counts fetches.
func jwksHandler(fetchCount *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetchCount != nil {
			fetchCount.Add(1)
		}

		pubKey := testKeyPair.PublicKey
		jwks := map[string]interface{}{
			"keys": []map[string]string{
				{
					"kty": "RSA",
					"kid": testKID,
					"use": "sig",
					"n":   base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pubKey.E)).Bytes()),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}
}

// signToken creates a JWT signed with the test private key.
func signToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKID

	tokenStr, err := token.SignedString(testKeyPair)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return tokenStr
}

// newTestAuthenticator spins up a JWKS server and builds an authenticator
// pointed at it.
func newTestAuthenticator(t *testing.T, cfgOverride func(*Config), fetchCount *atomic.Int32) *Authenticator {
	t.Helper()

	server := httptest.NewServer(jwksHandler(fetchCount))
	t.Cleanup(server.Close)

	cfg := Config{
		JWKSURL:  server.URL + "/.well-known/jwks.json",
		Issuer:   "https://auth.example.com",
		Audience: "chat-relay",
		CacheTTL: 1 * time.Hour,
	}

	if cfgOverride != nil {
		cfgOverride(&cfg)
	}

	return New(cfg)
}

// baseClaims returns a claim set that passes validation against the default
// test configuration.
func baseClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "user-123",
		"iss": "https://auth.example.com",
		"aud": "chat-relay",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func authenticateToken(t *testing.T, authn *Authenticator, token string) auth.AuthResult {
	t.Helper()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return authn.Authenticate(context.Background(), r)
}

func TestJWT_ValidToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)
	token := signToken(t, baseClaims())

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity == nil {
		t.Fatal("Identity is nil")
	}
	if result.Identity.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "user-123")
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-1 * time.Hour).Unix()
	claims["iat"] = time.Now().Add(-2 * time.Hour).Unix()
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (expired)", result.Decision)
	}
}

func TestJWT_WrongAudience(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	claims := baseClaims()
	claims["aud"] = "some-other-api"
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (wrong audience)", result.Decision)
	}
}

func TestJWT_WrongIssuer(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	claims := baseClaims()
	claims["iss"] = "https://evil.example.com"
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (wrong issuer)", result.Decision)
	}
}

func TestJWT_NoBearerToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}

			result := authn.Authenticate(context.Background(), r)

			if result.Decision != auth.Abstain {
				t.Fatalf("Decision = %d, want Abstain", result.Decision)
			}
		})
	}
}

func TestJWT_InvalidToken(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty bearer", ""},
		{"partial jwt", "eyJhbGciOiJSUzI1NiJ9.invalidpayload"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := authenticateToken(t, authn, tc.token)

			if result.Decision != auth.No {
				t.Fatalf("Decision = %d, want No (invalid token)", result.Decision)
			}
		})
	}
}

func TestJWT_TierExtraction(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	claims := baseClaims()
	claims["tier"] = "premium"
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Tier != "premium" {
		t.Errorf("Tier = %q, want %q", result.Identity.Tier, "premium")
	}
}

func TestJWT_MissingTierClaim(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)
	token := signToken(t, baseClaims())

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Tier != "" {
		t.Errorf("Tier = %q, want empty (claim absent)", result.Identity.Tier)
	}
}

func TestJWT_JWKSCaching(t *testing.T) {
	var fetchCount atomic.Int32
	authn := newTestAuthenticator(t, nil, &fetchCount)

	token := signToken(t, baseClaims())

	// Make multiple requests with the same token.
	for i := 0; i < 5; i++ {
		result := authenticateToken(t, authn, token)
		if result.Decision != auth.Yes {
			t.Fatalf("request %d: Decision = %d, want Yes; err=%v", i, result.Decision, result.Err)
		}
	}

	// The JWKS should have been fetched only once (cache TTL is 1 hour).
	if count := fetchCount.Load(); count != 1 {
		t.Errorf("JWKS fetch count = %d, want 1 (caching broken)", count)
	}
}

func TestJWT_CustomClaims(t *testing.T) {
	authn := newTestAuthenticator(t, func(cfg *Config) {
		cfg.UserClaim = "email"
		cfg.TierClaim = "plan"
	}, nil)

	claims := baseClaims()
	delete(claims, "sub")
	claims["email"] = "alice@example.com"
	claims["plan"] = "enterprise"
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != "alice@example.com" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "alice@example.com")
	}
	if result.Identity.Tier != "enterprise" {
		t.Errorf("Tier = %q, want %q", result.Identity.Tier, "enterprise")
	}
}

func TestJWT_MissingSubClaim(t *testing.T) {
	authn := newTestAuthenticator(t, nil, nil)

	claims := baseClaims()
	delete(claims, "sub")
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (missing sub)", result.Decision)
	}
}

func TestJWT_NoIssuerValidation(t *testing.T) {
	// When Issuer is empty, any issuer is accepted.
	authn := newTestAuthenticator(t, func(cfg *Config) { cfg.Issuer = "" }, nil)

	claims := baseClaims()
	claims["iss"] = "https://any-issuer.example.com"
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (no issuer validation); err=%v", result.Decision, result.Err)
	}
}

func TestJWT_NoAudienceValidation(t *testing.T) {
	// When Audience is empty, any audience is accepted.
	authn := newTestAuthenticator(t, func(cfg *Config) { cfg.Audience = "" }, nil)

	claims := baseClaims()
	claims["aud"] = "any-api"
	token := signToken(t, claims)

	result := authenticateToken(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes (no audience validation); err=%v", result.Decision, result.Err)
	}
}
