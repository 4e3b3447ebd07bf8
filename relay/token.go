package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const tokenTTL = 24 * time.Hour

// TokenIssuer signs and verifies the resume tokens handed out in init
// messages. A token proves nothing beyond possession; it exists so a dropped
// connection can pick its identity back up, not as authentication.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret}
}

// Issue signs a token binding id to room for tokenTTL.
func (t *TokenIssuer) Issue(id, room string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  id,
		"room": room,
		"exp":  time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(t.secret)
}

// Verify checks signature, expiry, and room binding, returning the identity
// the token was issued for.
func (t *TokenIssuer) Verify(tokenString, room string) (string, error) {
	token, err := jwt.Parse(tokenString, func(jwtToken *jwt.Token) (interface{}, error) {
		if _, ok := jwtToken.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected method: %s", jwtToken.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid resume token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims shape")
	}
	if claimedRoom, _ := claims["room"].(string); claimedRoom != room {
		return "", fmt.Errorf("token issued for room %q", claimedRoom)
	}
	id, _ := claims["sub"].(string)
	if id == "" {
		return "", errors.New("token missing subject")
	}
	return id, nil
}
