package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	// ErrNoToken is returned when no token was presented at all.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken is returned when the signature check or expiry fails.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrMalformedClaims is returned when a verified token lacks an identity.
	ErrMalformedClaims = errors.New("malformed token claims")
)

// SecretClass selects which signing secret a token is checked against.
type SecretClass int

const (
	Access SecretClass = iota
	Refresh
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

const (
	userIdClaim   = "user-id"
	usernameClaim = "username"
	expClaim      = "exp"
)

// Identity is the verified subject of a token. Immutable once issued.
type Identity struct {
	UserId   string
	Username string
}

type Verifier struct {
	accessKey  []byte
	refreshKey []byte
}

func NewVerifier(accessKey, refreshKey []byte) *Verifier {
	return &Verifier{
		accessKey:  accessKey,
		refreshKey: refreshKey,
	}
}

func (v *Verifier) key(class SecretClass) []byte {
	if class == Refresh {
		return v.refreshKey
	}
	return v.accessKey
}

// Verify checks tokenString against the secret for class and extracts
// the identity carried in its claims.
func (v *Verifier) Verify(tokenString string, class SecretClass) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrNoToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key(class), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrMalformedClaims
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return Identity{}, ErrMalformedClaims
	}

	username, ok := claims[usernameClaim].(string)
	if !ok || username == "" {
		return Identity{}, ErrMalformedClaims
	}

	return Identity{UserId: userId, Username: username}, nil
}

// IssueAccess creates a short-lived access token for ident.
func (v *Verifier) IssueAccess(ident Identity) (string, error) {
	return v.issue(ident, Access, AccessTokenTTL)
}

// IssueRefresh creates a long-lived refresh token for ident.
func (v *Verifier) IssueRefresh(ident Identity) (string, error) {
	return v.issue(ident, Refresh, RefreshTokenTTL)
}

func (v *Verifier) issue(ident Identity, class SecretClass, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:   ident.UserId,
		usernameClaim: ident.Username,
		expClaim:      time.Now().Add(ttl).Unix(),
	})

	return token.SignedString(v.key(class))
}
