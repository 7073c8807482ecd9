package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/missioncare/intake-api/internal/model"
)

// TokenService validates the bearer tokens issued by the external identity
// provider and extracts the acting staff member. Login and enrollment live
// outside this service; only validation is needed here.
type TokenService interface {
	ValidateToken(token string) (*model.Actor, error)
	GenerateToken(actor *model.Actor, ttl time.Duration) (string, error)
}

type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type jwtService struct {
	secret []byte
}

func NewJWTService(secret string) TokenService {
	return &jwtService{secret: []byte(secret)}
}

func (s *jwtService) ValidateToken(tokenStr string) (*model.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	actorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	return &model.Actor{
		ID:    actorID,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}

func (s *jwtService) GenerateToken(actor *model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:  actor.Name,
		Email: actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
