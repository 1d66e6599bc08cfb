// Package utils provides helpers for token creation and password hashing.
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT access token along with its expiry.  Access
// tokens are short-lived and sent in the Authorization header when calling
// protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Claims are the fields the API reads back from an access token.
type Claims struct {
	UserID uint64
	Role   string
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The subject
// claim carries the decimal user ID so that it survives JSON number
// handling unchanged; role carries STUDENT or ADMIN.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(userID, 10),
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token signed with secret and returns
// its claims.  Expired tokens and tokens signed with another algorithm
// are rejected.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, err
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, errors.New("invalid claims")
	}
	sub, err := mc.GetSubject()
	if err != nil {
		return Claims{}, err
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return Claims{}, fmt.Errorf("invalid subject %q", sub)
	}
	role, _ := mc["role"].(string)
	return Claims{UserID: id, Role: role}, nil
}
