// Package jwt issues and validates HS256 access tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "stocksync"

// ErrInvalidToken возвращается для любого токена, который нельзя принять
var ErrInvalidToken = errors.New("invalid token")

// Claims представляет JWT claims access token
type Claims struct {
	UserID string `json:"user_id"`
	gojwt.RegisteredClaims
}

// Service выпускает и проверяет access token
type Service struct {
	now    func() time.Time
	secret []byte
	ttl    time.Duration
}

// NewService creates a new JWT service.
// secret should be a cryptographically secure random string.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock подменяет источник времени
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// TTL возвращает время жизни выпускаемых токенов
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue создает access token пользователя и возвращает его время жизни в секундах
func (s *Service) Issue(userID string) (string, int64, error) {
	now := s.now()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, int64(s.ttl.Seconds()), nil
}

// Validate проверяет подпись, срок действия и издателя токена
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := gojwt.ParseWithClaims(tokenString, &Claims{}, func(token *gojwt.Token) (any, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		gojwt.WithIssuer(issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
