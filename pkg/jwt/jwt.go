package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token süresi (7 gün)
const TokenExpiryLogin = 7 * 24 * time.Hour

var ErrMissingSubject = errors.New("token carries no user id")

// GenerateToken is used by tests and the ops CLI; user tokens are issued by
// the identity provider and only validated here.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenString string) (jwt.MapClaims, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not set")
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// UserID reads the subject, falling back to a user_id claim.
func UserID(claims jwt.MapClaims) (string, error) {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", ErrMissingSubject
}
