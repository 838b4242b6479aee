package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrKeyNotFound = errors.New("jwks key not found")

// minRefresh limits how often an unknown kid can trigger a fetch.
const minRefresh = 30 * time.Second

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSClient caches the identity provider's RSA signing keys by kid. Concurrent misses
// share one fetch, and a failed fetch keeps serving the keys it already has.
type JWKSClient struct {
	url    string
	ttl    time.Duration
	client *http.Client
	group  singleflight.Group
	now    func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSClient(url string, ttl time.Duration) *JWKSClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWKSClient{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 5 * time.Second},
		now:    time.Now,
		keys:   map[string]*rsa.PublicKey{},
	}
}

func (c *JWKSClient) Get(keyID string) (*rsa.PublicKey, error) {
	key, fresh, recent := c.lookup(keyID)
	if key != nil && fresh {
		return key, nil
	}
	if key == nil && recent {
		return nil, ErrKeyNotFound
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) { return nil, c.refresh() })
	if key, _, _ = c.lookup(keyID); key != nil {
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, ErrKeyNotFound
}

// lookup reports the cached key, whether the cache is within its ttl, and whether the
// last fetch is too recent to justify another one.
func (c *JWKSClient) lookup(keyID string) (*rsa.PublicKey, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	age := c.now().Sub(c.fetchedAt)
	fetched := !c.fetchedAt.IsZero()
	return c.keys[keyID], fetched && age < c.ttl, fetched && age < minRefresh
}

func (c *JWKSClient) refresh() error {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if !usableSigningKey(k) {
			continue
		}
		if pub, err := rsaPublicKey(k); err == nil {
			keys[k.Kid] = pub
		}
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.now()
	c.mu.Unlock()
	return nil
}

func usableSigningKey(k jsonWebKey) bool {
	if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" {
		return false
	}
	return (k.Use == "" || k.Use == "sig") && (k.Alg == "" || k.Alg == "RS256")
}

func rsaPublicKey(k jsonWebKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("invalid jwk exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
