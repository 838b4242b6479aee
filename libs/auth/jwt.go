package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity claims issued by the upstream identity provider. Email is the
// stable matching key for people; Zoneinfo is the OIDC IANA timezone claim.
type Claims struct {
	Sub      string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Zoneinfo string `json:"zoneinfo,omitempty"`
	Exp      int64  `json:"exp"`
	Iat      int64  `json:"iat"`
}

type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

func ParseHeader(token string) (*Header, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var header Header
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, ErrInvalidToken
	}
	return &header, nil
}

func SignHS256(claims Claims, secret string) (string, error) {
	header := map[string]string{
		"alg": "HS256",
		"typ": "JWT",
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
	return unsigned + "." + hmacSHA256(unsigned, secret), nil
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	unsigned := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(hmacSHA256(unsigned, secret))) {
		return nil, ErrInvalidToken
	}
	return decodeClaims(parts[1], time.Now())
}

func VerifyRS256(token string, pubKey crypto.PublicKey) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrInvalidToken
	}
	rsaKey, ok := pubKey.(*rsa.PublicKey)
	if !ok {
		return nil, ErrInvalidToken
	}

	hash := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if err := rsa.VerifyPKCS1v15(rsaKey, crypto.SHA256, hash[:], sig); err != nil {
		return nil, ErrInvalidToken
	}
	return decodeClaims(parts[1], time.Now())
}

func decodeClaims(segment string, now time.Time) (*Claims, error) {
	payload, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Exp > 0 && now.Unix() > claims.Exp {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func hmacSHA256(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
