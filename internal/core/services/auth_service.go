package services

import (
	"errors"
	"time"

	"parley/internal/core/domain"
	"parley/internal/core/ports"
	"parley/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the JWT payload issued by the external auth collaborator.
type Claims struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) *authService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
	}
}

var _ ports.AuthService = (*authService)(nil)

// VerifyConnectionCredential resolves a connection token to an identity. An
// empty token is a guest: it gets a generated user ID so per-user invariants
// hold without special cases, and the Guest flag exempts it from the
// one-session-per-user rule.
func (s *authService) VerifyConnectionCredential(token string) (*domain.Identity, error) {
	if token == "" {
		return &domain.Identity{
			UserID: domain.UserID(utils.GenerateGuestID()),
			Name:   "Guest",
			Guest:  true,
		}, nil
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{
		UserID: claims.UserID,
		Name:   claims.Name,
	}, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// GenerateToken mints a credential the way the auth collaborator does.
// Used by tests and local tooling.
func (s *authService) GenerateToken(userID domain.UserID, name string) (string, error) {
	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
