package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	claims := Claims{
		Sub:      "user-1",
		Email:    "ada@example.com",
		Name:     "Ada",
		Zoneinfo: "Europe/London",
		Iat:      time.Now().Unix(),
		Exp:      time.Now().Add(1 * time.Hour).Unix(),
	}
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Email != claims.Email || parsed.Zoneinfo != claims.Zoneinfo {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestHS256RejectsExpiredAndEmaillessTokens(t *testing.T) {
	secret := "test-secret"
	expired, _ := SignHS256(Claims{Sub: "u", Email: "a@example.com", Exp: time.Now().Add(-time.Minute).Unix()}, secret)
	if _, err := ParseAndVerifyHS256(expired, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
	noEmail, _ := SignHS256(Claims{Sub: "u"}, secret)
	if _, err := ParseAndVerifyHS256(noEmail, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken without email, got %v", err)
	}
}

func TestRS256Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	claims := Claims{
		Sub:   "user-2",
		Email: "grace@example.com",
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(1 * time.Hour).Unix(),
	}

	token, err := signRS256(claims, key, "kid-1")
	if err != nil {
		t.Fatalf("rs256 Sign failed: %v", err)
	}
	parsed, err := VerifyRS256(token, &key.PublicKey)
	if err != nil {
		t.Fatalf("VerifyRS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Email != claims.Email {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
}

func jwksServer(t *testing.T, pub *rsa.PublicKey, hits *atomic.Int32, failAfter int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if n := hits.Add(1); failAfter > 0 && n > failAfter {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string][]jsonWebKey{"keys": {{
			Kty: "RSA",
			Kid: "kid-1",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString([]byte{1, 0, 1}),
		}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifierUsesJWKSForRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	var hits atomic.Int32
	client := NewJWKSClient(jwksServer(t, &key.PublicKey, &hits, 0).URL, time.Minute)
	now := time.Now()
	client.now = func() time.Time { return now }
	v := Verifier{Secret: "unused", JWKS: client}

	token, err := signRS256(Claims{Sub: "u", Email: "x@example.com"}, key, "kid-1")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	unknownKid, _ := signRS256(Claims{Sub: "u", Email: "x@example.com"}, key, "kid-2")
	if _, err := v.Verify(unknownKid); err == nil {
		t.Fatal("expected failure for unknown kid")
	}
	if hits.Load() != 1 {
		t.Fatalf("unknown kid right after a fetch must not refetch, got %d fetches", hits.Load())
	}

	now = now.Add(2 * time.Minute)
	if _, err := v.Verify(token); err != nil {
		t.Fatalf("Verify after expiry failed: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected a refresh after the ttl, got %d fetches", hits.Load())
	}
}

func TestJWKSKeepsKeysWhenRefreshFails(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	var hits atomic.Int32
	client := NewJWKSClient(jwksServer(t, &key.PublicKey, &hits, 1).URL, time.Minute)
	now := time.Now()
	client.now = func() time.Time { return now }

	if _, err := client.Get("kid-1"); err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	now = now.Add(time.Hour)
	if _, err := client.Get("kid-1"); err != nil {
		t.Fatalf("expected the cached key after a failed refresh, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected a refresh attempt, got %d fetches", hits.Load())
	}
}

func signRS256(claims Claims, key *rsa.PrivateKey, kid string) (string, error) {
	header := map[string]string{
		"alg": "RS256",
		"typ": "JWT",
	}
	if kid != "" {
		header["kid"] = kid
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	hash := sha256.Sum256([]byte(unsigned))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}
