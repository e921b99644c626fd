package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chatapp/internal/domain"
	chatapp_errors "chatapp/pkg/errors"
)

// AccessClaims matches the tokens issued by the account service. Older
// tokens carry the user id in _id, newer ones in sub.
type AccessClaims struct {
	UserID string `json:"_id,omitempty"`
	Mail   string `json:"mail,omitempty"`
	jwt.RegisteredClaims
}

// TokenService verifies access tokens. Issuing them is the account service's job.
type TokenService struct {
	jwtSecret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{jwtSecret: []byte(secret)}
}

func (s *TokenService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chatapp_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chatapp_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, chatapp_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, chatapp_errors.ErrUnauthorized
	}

	return *claims, nil
}

// VerifyUser returns the user a token was issued to.
func (s *TokenService) VerifyUser(tokenString string) (uuid.UUID, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	raw := claims.UserID
	if raw == "" {
		raw = claims.Subject
	}
	id, err := domain.ParseID(raw)
	if err != nil {
		return uuid.Nil, chatapp_errors.ErrUnauthorized
	}
	return id, nil
}

// IssueAccessToken signs a token for userID. Used by tests and local tooling.
func (s *TokenService) IssueAccessToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
