package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "librarydesk"

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Token is a signed access token and the claims that matter to callers.
type Token struct {
	Value     string    `json:"access_token"`
	ID        string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (ti *TokenIssuer) Issue(userID, role string) (Token, error) {
	jti, err := generateJTI()
	if err != nil {
		return Token{}, err
	}
	now := ti.now()
	exp := now.Add(ti.ttl)

	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ID: jti, ExpiresAt: exp}, nil
}

var ErrInvalidToken = errors.New("invalid token")

func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

const resetAudience = "password-reset"

// IssueReset signs a password reset token for userID. The key mixes in
// fingerprint, normally the current password hash, so the token stops
// verifying once the password changes.
func (ti *TokenIssuer) IssueReset(userID, fingerprint string, ttl time.Duration) (Token, error) {
	jti, err := generateJTI()
	if err != nil {
		return Token{}, err
	}
	now := ti.now()
	exp := now.Add(ttl)
	c := jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID,
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{resetAudience},
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(ti.resetKey(fingerprint))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ID: jti, ExpiresAt: exp}, nil
}

// ParseReset verifies a reset token against fingerprint and returns its subject.
func (ti *TokenIssuer) ParseReset(tokenStr, fingerprint string) (string, error) {
	var c jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (any, error) {
		return ti.resetKey(fingerprint), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(resetAudience),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if !t.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

func (ti *TokenIssuer) resetKey(fingerprint string) []byte {
	key := make([]byte, 0, len(ti.secret)+len(fingerprint))
	key = append(key, ti.secret...)
	return append(key, fingerprint...)
}

// PeekSubject reads the subject of a token without verifying it. The result
// must only be used to look up the key for a verifying parse.
func PeekSubject(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &c); err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
