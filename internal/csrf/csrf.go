// Package csrf issues and verifies anti-forgery tokens for the HTML forms.
//
// A token is an HS256 JWT signed with the startup secret. Its subject is a
// random nonce that is also stored in an HttpOnly cookie, so a token is only
// accepted together with the browser session it was issued to.
package csrf

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CookieName is the cookie holding the per-browser nonce.
	CookieName = "abbrev_csrf"

	// FieldName is the form field carrying the signed token.
	FieldName = "csrf_token"

	audience = "csrf"
)

// ErrInvalidToken is returned by Verify for a missing, forged, expired or
// mismatched token.
var ErrInvalidToken = errors.New("invalid anti-forgery token")

// Option customises a Protector.
type Option func(*Protector)

// WithSecureCookie marks the nonce cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(p *Protector) { p.secure = secure }
}

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(p *Protector) { p.now = now }
}

// Protector issues and verifies anti-forgery tokens.
type Protector struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// New creates a Protector signing with secret. Tokens expire after ttl.
func New(secret string, ttl time.Duration, opts ...Option) (*Protector, error) {
	if secret == "" {
		return nil, fmt.Errorf("csrf: secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("csrf: ttl must be positive")
	}
	p := &Protector{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Issue returns a token bound to the caller's nonce cookie, setting the
// cookie first if the request does not carry one.
func (p *Protector) Issue(w http.ResponseWriter, r *http.Request) (string, error) {
	nonce := ""
	if c, err := r.Cookie(CookieName); err == nil {
		nonce = c.Value
	}
	if nonce == "" {
		nonce = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    nonce,
			Path:     "/",
			HttpOnly: true,
			Secure:   p.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   nonce,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("signing anti-forgery token: %w", err)
	}
	return signed, nil
}

// Verify checks the token submitted in the request form against the nonce
// cookie. Every failure wraps ErrInvalidToken.
func (p *Protector) Verify(r *http.Request) error {
	raw := r.PostFormValue(FieldName)
	if raw == "" {
		return fmt.Errorf("%w: token missing", ErrInvalidToken)
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return fmt.Errorf("%w: nonce cookie missing", ErrInvalidToken)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if subtle.ConstantTimeCompare([]byte(claims.Subject), []byte(cookie.Value)) != 1 {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidToken)
	}
	return nil
}
