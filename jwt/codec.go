package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod defines a public type used by rotauth APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the token lifecycle engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the token lifecycle engine.
	MethodHS256 SigningMethod = "hs256"
)

// Kind distinguishes the two token classes minted by the codec. The kind is
// embedded in the claims so an access token can never be replayed against
// the refresh endpoint or vice versa.
type Kind string

const (
	// KindAccess is an exported constant or variable used by the token lifecycle engine.
	KindAccess Kind = "ACCESS"
	// KindRefresh is an exported constant or variable used by the token lifecycle engine.
	KindRefresh Kind = "REFRESH"
)

var (
	// ErrMalformed is an exported constant or variable used by the token lifecycle engine.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is an exported constant or variable used by the token lifecycle engine.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is an exported constant or variable used by the token lifecycle engine.
	ErrExpired = errors.New("token expired")
)

// Config defines a public type used by rotauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Claims defines a public type used by rotauth APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	UserID    string   `json:"userId"`
	Scope     []string `json:"scope,omitempty"`
	TokenKind string   `json:"tokenKind"`
	jwt.RegisteredClaims
}

// Kind returns the token class recorded in the claims.
func (c *Claims) Kind() Kind {
	return Kind(c.TokenKind)
}

// Codec defines a public type used by rotauth APIs.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	config Config
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("ed25519 requires private key")
		}
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Codec{config: cfg}, nil
}

// Issue mints a signed token of the given kind. Every token carries a
// unique jti so two tokens minted in the same second never collide.
func (c *Codec) Issue(subject, userID string, scope []string, kind Kind, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("invalid TTL")
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", errors.New("invalid token kind")
	}

	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Scope:     scope,
		TokenKind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(c.getMethod(), claims)

	signKey, err := c.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Verify parses and validates a compact token, checking signature, expiry,
// and issuer. Errors map to the package sentinels so callers can classify
// failures with errors.Is without depending on the underlying library.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != c.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return c.getVerifyKey()
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.TokenKind != string(KindAccess) && claims.TokenKind != string(KindRefresh) {
		return nil, ErrMalformed
	}

	return claims, nil
}

// KindOf verifies the token and returns only its kind.
func (c *Codec) KindOf(tokenStr string) (Kind, error) {
	claims, err := c.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Kind(), nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (c *Codec) getMethod() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) getSignKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) getVerifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
