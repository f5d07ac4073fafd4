package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/formahub/auth-api/internal/user"
)

// JWTService signs and validates HS256 bearer credentials. The signing
// secret is process-wide; rotating it invalidates every outstanding token,
// which is the whole of the logout model.
type JWTService struct {
	secret   []byte
	duration time.Duration
}

func NewJWTService(secret string, duration time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	return &JWTService{secret: []byte(secret), duration: duration}, nil
}

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CreateToken issues a token binding the subject identity and role for the
// configured validity window.
func (s *JWTService) CreateToken(userID uuid.UUID, role user.Role) (string, error) {
	now := time.Now()

	claims := jwtClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken validates signature and expiry and returns the claims.
// Expired tokens map to ErrExpiredToken; every other failure, including a
// swapped signing algorithm, maps to ErrInvalidToken.
func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    claims.Subject,
		Role:      user.Role(claims.Role),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
