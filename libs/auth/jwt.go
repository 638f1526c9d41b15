package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Claims carried in clinicbook bearer tokens. Tokens are minted by the clinic's
// identity provider; this service only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	ClinicID string `json:"clinic_id,omitempty"`
	Role     string `json:"role"`
}

// Verifier checks HS256 tokens against a shared secret and, when a JWKS client is
// configured, RS256 tokens against the published keys.
type Verifier struct {
	secret []byte
	jwks   *JWKSClient
	parser *jwt.Parser
}

func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		jwks:   jwks,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.keyFunc)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		if len(v.secret) == 0 {
			return nil, errors.New("hs256 secret not configured")
		}
		return v.secret, nil
	case jwt.SigningMethodRS256.Alg():
		if v.jwks == nil {
			return nil, errors.New("rs256 tokens not accepted")
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return v.jwks.Get(kid)
	default:
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
}

// SignHS256 mints a short-lived staff or admin token for local use and tests.
func SignHS256(subject, role string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
