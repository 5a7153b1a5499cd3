package mockapi

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultTokenExpiry is how long issued access tokens stay valid.
const DefaultTokenExpiry = 30 * 24 * time.Hour

// RevokedTokenCache tracks revoked token ids until the tokens would have expired anyway.
type RevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewRevokedTokenCache() *RevokedTokenCache {
	return &RevokedTokenCache{
		revoked: make(map[string]time.Time),
	}
}

func (c *RevokedTokenCache) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *RevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup drops entries whose tokens have expired by now.
func (c *RevokedTokenCache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

// TokenClaims are the verified claims of an access token.
type TokenClaims struct {
	Subject   string // Institution id
	ID        string // jti
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret  []byte
	expiry  time.Duration
	nowTime func() time.Time
	revoked *RevokedTokenCache
}

// NewIssuer creates an issuer signing with secret.
func NewIssuer(secret string, expiry time.Duration, nowTime func() time.Time) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("[mockapi NewIssuer] secret is required")
	}
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	if nowTime == nil {
		nowTime = time.Now
	}
	return &Issuer{
		secret:  []byte(secret),
		expiry:  expiry,
		nowTime: nowTime,
		revoked: NewRevokedTokenCache(),
	}, nil
}

// Issue creates an access token for the institution with id subject.
func (i *Issuer) Issue(subject string) (string, error) {
	now := i.nowTime()
	claims := jwt.MapClaims{
		"sub": subject,                  // Institution id
		"iat": now.Unix(),               // Issued at
		"exp": now.Add(i.expiry).Unix(), // Expiry
		"jti": uuid.New().String(),      // Unique token id for revocation
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

// Verify checks the signature, expiry and revocation of raw.
func (i *Issuer) Verify(raw string) (*TokenClaims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty token")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.nowTime),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(raw, jwt.MapClaims{}, i.verificationKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token")
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims from token")
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("token missing exp claim")
	}
	if sub == "" || jti == "" {
		return nil, errors.New("token missing sub or jti claim")
	}
	if i.revoked.IsRevoked(jti) {
		return nil, errors.New("token revoked")
	}

	return &TokenClaims{Subject: sub, ID: jti, ExpiresAt: exp.Time}, nil
}

// Revoke invalidates a verified token.
func (i *Issuer) Revoke(claims *TokenClaims) {
	i.revoked.Add(claims.ID, claims.ExpiresAt)
	i.revoked.Cleanup(i.nowTime())
}

func (i *Issuer) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return i.secret, nil
}
