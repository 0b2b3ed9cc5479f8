package auth

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rmacedo/patrol-ops/models"
)

const (
	accessTokenTTL  = time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified identity of a caller: who they are and which
// role they hold.
type Claims struct {
	SubjectID string
	Role      models.UserType
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type tokenClaims struct {
	Role string `json:"type"`
	jwt.RegisteredClaims
}

// Service signs and verifies access/refresh token pairs.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewService(accessSecret, refreshSecret string) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}
}

func NewServiceFromEnv() *Service {
	return NewService(os.Getenv("JWT_ACCESS_SECRET"), os.Getenv("JWT_REFRESH_SECRET"))
}

func (s *Service) GenerateTokens(userID string, role models.UserType) (TokenPair, error) {
	access, err := s.sign(userID, role, s.accessSecret, accessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, role, s.refreshSecret, refreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(userID string, role models.UserType, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// Verify checks an access token and returns its claims, or nil when the
// token is missing, malformed, expired or carries a bad signature.
func (s *Service) Verify(accessToken string) *Claims {
	claims, err := s.parse(accessToken, s.accessSecret)
	if err != nil {
		return nil
	}
	return claims
}

// VerifyRefresh checks a refresh token for the token rotation flow.
func (s *Service) VerifyRefresh(refreshToken string) (*Claims, error) {
	return s.parse(refreshToken, s.refreshSecret)
}

func (s *Service) parse(raw string, secret []byte) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Claims{SubjectID: claims.Subject, Role: models.UserType(claims.Role)}, nil
}
