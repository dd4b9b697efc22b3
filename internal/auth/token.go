package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSecret indicates the token service was built without a signing key.
	ErrMissingSecret = errors.New("token signing secret is required")
	// ErrInvalidTTL indicates a non-positive token lifetime.
	ErrInvalidTTL = errors.New("token ttl must be positive")
	// ErrTokenMalformed indicates the token cannot be parsed or decoded.
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrInvalidSignature indicates the signature does not verify under the configured secret.
	ErrInvalidSignature = errors.New("token signature is invalid")
	// ErrTokenExpired indicates a verified token whose expiry has passed.
	ErrTokenExpired = errors.New("token is expired")
)

// SigningError reports a failure to encode or sign claims.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return "sign token: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Claims is the payload carried inside a signed token.
// Timestamps are seconds since the Unix epoch.
type Claims struct {
	Subject   string `json:"sub"`
	IssuedAt  uint64 `json:"iat"`
	ExpiresAt uint64 `json:"exp"`
	Role      string `json:"role"`
	UserID    int32  `json:"user_id"`
}

// NewClaims builds claims issued at now and valid for ttl.
func NewClaims(subject, role string, userID int32, now time.Time, ttl time.Duration) (Claims, error) {
	if ttl <= 0 {
		return Claims{}, ErrInvalidTTL
	}

	issuedAt := now.Unix()
	expiresAt := now.Add(ttl).Unix()
	if expiresAt <= issuedAt {
		// Sub-second ttl rounds down to the issue second.
		expiresAt = issuedAt + 1
	}

	return Claims{
		Subject:   subject,
		IssuedAt:  uint64(issuedAt),
		ExpiresAt: uint64(expiresAt),
		Role:      role,
		UserID:    userID,
	}, nil
}

// ExpiresAtTime returns the expiry as a time.Time.
func (c Claims) ExpiresAtTime() time.Time {
	return time.Unix(int64(c.ExpiresAt), 0).UTC()
}

// jwt.Claims implementation. Registered-claim checks are performed by
// TokenService itself, so these only expose values.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(int64(c.ExpiresAt), 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(int64(c.IssuedAt), 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }

func (c Claims) GetIssuer() (string, error) { return "", nil }

func (c Claims) GetSubject() (string, error) { return c.Subject, nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) { return nil, nil }

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// TokenService issues and validates HS256 signed tokens.
// The signing key is read-only after construction; a TokenService is safe for
// concurrent use.
type TokenService struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService creates a TokenService for the given secret.
// Returns ErrMissingSecret if the secret is empty.
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	ts := &TokenService{
		secret: key,
		now:    time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(ts)
	}

	return ts, nil
}

// Issue encodes and signs claims. The output is deterministic for equal
// claims and secret.
func (ts *TokenService) Issue(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", &SigningError{Err: err}
	}

	return signed, nil
}

// Validate verifies the token signature, decodes its claims and checks expiry.
// Returns ErrTokenMalformed, ErrInvalidSignature or ErrTokenExpired on failure.
// A token is expired once now reaches its exp second.
func (ts *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := ts.parser.ParseWithClaims(tokenString, claims, ts.keyFunc)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if uint64(ts.now().Unix()) >= claims.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func (ts *TokenService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return ts.secret, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
