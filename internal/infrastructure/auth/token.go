// Package auth выпускает и проверяет JWT access token'ы (HS256).
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Config - настройки JWT.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Validate проверяет обязательные поля.
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Issuer == "" {
		return errors.New("jwt issuer is required")
	}
	if c.TTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}
	return nil
}

// Payload - данные, которые попадают в токен.
// CustomerID и FactoryID заполнены для соответствующей роли.
type Payload struct {
	UserID     uuid.UUID
	CustomerID *uuid.UUID
	FactoryID  *uuid.UUID
	Role       string
	JTI        string
}

// Claims - typed claims access token'а.
type Claims struct {
	UserID     string `json:"uid"`
	CustomerID string `json:"cid,omitempty"`
	FactoryID  string `json:"fid,omitempty"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Mint подписывает токен для payload со сроком cfg.TTL от now.
func Mint(cfg Config, now time.Time, p Payload) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if p.UserID == uuid.Nil {
		return "", errors.New("user id is required")
	}
	if p.Role == "" {
		return "", errors.New("role is required")
	}

	jti := strings.TrimSpace(p.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := Claims{
		UserID: p.UserID.String(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			ID:        jti,
		},
	}
	if p.CustomerID != nil {
		claims.CustomerID = p.CustomerID.String()
	}
	if p.FactoryID != nil {
		claims.FactoryID = p.FactoryID.String()
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись, issuer и срок действия и возвращает claims.
func Parse(cfg Config, tokenString string) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("invalid uid claim: %w", err)
	}
	return claims, nil
}
