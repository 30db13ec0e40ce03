// Package auth verifies the bearer tokens issued by the managed auth backend
// and turns them into a model.Identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"av-rental/internal/model"

	"github.com/dgrijalva/jwt-go"
)

const roleAdmin = "admin"

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(token string) (*model.Identity, error)
}

type jwtVerifier struct {
	secret []byte
}

// NewJWTVerifier creates an HS256 verifier for tokens signed with secret.
func NewJWTVerifier(secret string) Verifier {
	return &jwtVerifier{secret: []byte(secret)}
}

// Verify parses and validates token. Expired, malformed or foreign tokens all
// come back as model.ErrUnauthenticated.
func (v *jwtVerifier) Verify(token string) (*model.Identity, error) {
	if token == "" {
		return nil, model.ErrUnauthenticated
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, unauthenticated(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrUnauthenticated
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, unauthenticated(errors.New("token has no subject"))
	}
	email, _ := claims["email"].(string)

	return &model.Identity{
		UserID:  sub,
		Email:   email,
		IsAdmin: isAdmin(claims),
	}, nil
}

func unauthenticated(cause error) error {
	if cause == nil {
		return model.ErrUnauthenticated
	}
	return &model.DomainError{
		Kind:    model.ErrUnauthenticated.Kind,
		Code:    model.ErrUnauthenticated.Code,
		Message: model.ErrUnauthenticated.Message,
		Err:     cause,
	}
}

// isAdmin accepts the role either at the top level or under app_metadata.
func isAdmin(claims jwt.MapClaims) bool {
	if role, _ := claims["role"].(string); role == roleAdmin {
		return true
	}
	meta, ok := claims["app_metadata"].(map[string]interface{})
	if !ok {
		return false
	}
	role, _ := meta["role"].(string)
	return role == roleAdmin
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// IssueToken signs an HS256 token for id. Used by local tooling and tests;
// production tokens come from the auth backend.
func IssueToken(secret string, id model.Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   id.UserID,
		"email": id.Email,
		"iat":   jwt.TimeFunc().Unix(),
		"exp":   jwt.TimeFunc().Add(ttl).Unix(),
	}
	if id.IsAdmin {
		claims["app_metadata"] = map[string]interface{}{"role": roleAdmin}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
