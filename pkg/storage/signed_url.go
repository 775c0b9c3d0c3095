package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const downloadAudience = "report-download"

var (
	// ErrTokenExpired is returned by Parse for a well-signed token past its expiry.
	ErrTokenExpired = errors.New("download token expired")
	// ErrTokenInvalid covers malformed, foreign and tampered tokens.
	ErrTokenInvalid = errors.New("download token invalid")
)

type downloadClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// SignedURLSigner issues short-lived HS256 tokens naming a report job and the
// stored file it produced.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs a token for reportID and relPath.
func (s *SignedURLSigner) Generate(reportID, relPath string) (string, time.Time, error) {
	switch {
	case reportID == "" || relPath == "":
		return "", time.Time{}, errors.New("report id and path required")
	case len(s.secret) == 0:
		return "", time.Time{}, errors.New("signing secret missing")
	}
	issued := s.now().UTC().Truncate(time.Second)
	expiresAt := issued.Add(s.ttl)
	claims := downloadClaims{
		Path: relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reportID,
			Audience:  jwt.ClaimStrings{downloadAudience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies token and returns what it names. allowExpired skips the
// expiry check so cleanup can still locate files behind stale links.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(downloadAudience),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims downloadClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", "", time.Time{}, ErrTokenExpired
	case err != nil:
		return "", "", time.Time{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.Subject == "" || claims.Path == "" || claims.ExpiresAt == nil:
		return "", "", time.Time{}, ErrTokenInvalid
	}
	return claims.Subject, claims.Path, claims.ExpiresAt.Time, nil
}
