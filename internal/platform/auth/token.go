package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carry only the actor and the session id. There is no exp: a token
// lives exactly as long as its session.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 bearer tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(signingKey []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{key: signingKey, issuer: issuer, now: time.Now}
}

// Issue returns a signed token for actorID and the session id embedded in it.
func (t *TokenIssuer) Issue(actorID int64) (token, sessionID string, err error) {
	sessionID = uuid.NewString()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(actorID, 10),
		ID:       sessionID,
		Issuer:   t.issuer,
		IssuedAt: jwt.NewNumericDate(t.now()),
	}}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return token, sessionID, nil
}

// Parse verifies the signature and returns the actor id and session id.
func (t *TokenIssuer) Parse(token string) (actorID int64, sessionID string, err error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return 0, "", ErrInvalidToken
	}
	actorID, err = strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || actorID <= 0 || claims.ID == "" {
		return 0, "", ErrInvalidToken
	}
	return actorID, claims.ID, nil
}
