package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid identity token")

// IdentityClaims bind a connection to the one display name it may announce.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
}

// IssueIdentityToken signs an HS256 token allowing its bearer to announce name.
func IssueIdentityToken(secret, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("identity secret is empty")
	}
	if name == "" {
		return "", errors.New("name is empty")
	}

	now := time.Now()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		Name: name,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateIdentityToken checks signature and expiry and returns the name the
// token grants.
func ValidateIdentityToken(secret, tokenString string) (string, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	if tokenString == "" {
		return "", fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	name := claims.Name
	if name == "" {
		name = claims.Subject
	}
	if name == "" {
		return "", fmt.Errorf("%w: no name claim", ErrInvalidToken)
	}

	return name, nil
}

// ExtractTokenFromRequest extracts the token from the query string or the
// Authorization header.
func ExtractTokenFromRequest(r *http.Request) string {
	token := r.URL.Query().Get("token")
	if token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
