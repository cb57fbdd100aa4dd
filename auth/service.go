// Package auth provides JWT issuance and validation for user sessions and
// diagram share links, plus the gin middleware that guards the API.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/umlhub/umlhub/internal/config"
	"github.com/umlhub/umlhub/internal/slogging"
)

// Claims are the JWT claims carried by an access token
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// ShareClaims are the JWT claims carried by a share-link token
type ShareClaims struct {
	Typ        string `json:"typ"`
	DiagramID  string `json:"diagramId"`
	Permission string `json:"permission"`
	jwt.RegisteredClaims
}

// SharePermission values accepted in share tokens
const (
	SharePermissionView = "view"
	SharePermissionEdit = "edit"
)

// Service issues and validates tokens
type Service struct {
	cfg       config.AuthConfig
	blacklist *TokenBlacklist
	logger    *slogging.Logger
}

// NewService creates a new auth service. The blacklist is optional; when nil,
// logout does not revoke outstanding access tokens.
func NewService(cfg config.AuthConfig, blacklist *TokenBlacklist) *Service {
	return &Service{
		cfg:       cfg,
		blacklist: blacklist,
		logger:    slogging.Get(),
	}
}

// AccessTokenDuration returns the configured access token lifetime
func (s *Service) AccessTokenDuration() time.Duration {
	return time.Duration(s.cfg.JWT.ExpirationSeconds) * time.Second
}

// RefreshTokenDuration returns the configured refresh token lifetime
func (s *Service) RefreshTokenDuration() time.Duration {
	return time.Duration(s.cfg.JWT.RefreshExpirationSeconds) * time.Second
}

// GenerateAccessToken creates a signed access token for a user
func (s *Service) GenerateAccessToken(userID uuid.UUID, email, name string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTokenDuration())),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.Secret))
}

// GenerateRefreshToken creates a signed refresh token for a user
func (s *Service) GenerateRefreshToken(userID uuid.UUID) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.RefreshTokenDuration())),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWT.RefreshSecret))
}

// ValidateAccessToken parses and verifies an access token, rejecting
// blacklisted tokens.
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := s.parse(tokenString, claims, s.cfg.JWT.Secret); err != nil {
		return nil, err
	}

	if s.blacklist != nil && claims.ID != "" {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("Token blacklist lookup failed, allowing token: %v", err)
		} else if revoked {
			return nil, fmt.Errorf("token has been revoked")
		}
	}

	return claims, nil
}

// ValidateRefreshToken parses and verifies a refresh token, returning the user ID
func (s *Service) ValidateRefreshToken(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	if err := s.parse(tokenString, claims, s.cfg.JWT.RefreshSecret); err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject in refresh token: %w", err)
	}
	return userID, nil
}

// RevokeAccessToken blacklists an access token until its natural expiry
func (s *Service) RevokeAccessToken(ctx context.Context, tokenString string) error {
	if s.blacklist == nil {
		return nil
	}
	claims := &Claims{}
	if err := s.parse(tokenString, claims, s.cfg.JWT.Secret); err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.blacklist.Add(ctx, claims.ID, ttl)
}

// GenerateShareToken creates a signed share-link token bound to a diagram
func (s *Service) GenerateShareToken(jti uuid.UUID, diagramID uuid.UUID, permission string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := ShareClaims{
		Typ:        "share",
		DiagramID:  diagramID.String(),
		Permission: permission,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Share.Secret))
}

// ValidateShareToken parses and verifies a share-link token
func (s *Service) ValidateShareToken(tokenString string) (*ShareClaims, error) {
	claims := &ShareClaims{}
	if err := s.parse(tokenString, claims, s.cfg.Share.Secret); err != nil {
		return nil, err
	}
	if claims.Typ != "share" {
		return nil, fmt.Errorf("not a share token")
	}
	return claims, nil
}

func (s *Service) parse(tokenString string, claims jwt.Claims, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
