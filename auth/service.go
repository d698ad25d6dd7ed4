// Package auth issues and revokes tokens for the single configured operator.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/sirupsen/logrus"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

const revokedTokenPrefix = "RevokedToken:"

// Operator is the identity allowed to use the API.
type Operator struct {
	Username     string
	Name         string
	PasswordHash string
	// Password is compared in plain text when PasswordHash is empty.
	Password string
}

func OperatorFromEnv() Operator {
	return Operator{
		Username:     envDefault("OPERATOR_USERNAME", "admin"),
		Name:         envDefault("OPERATOR_NAME", "Administrador"),
		PasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
		Password:     envDefault("OPERATOR_PASSWORD", "licita@2024"),
	}
}

func (o Operator) checkPassword(password string) bool {
	if o.PasswordHash != "" {
		return utils.ComparePassword(o.PasswordHash, password) == nil
	}
	return subtle.ConstantTimeCompare([]byte(o.Password), []byte(password)) == 1
}

// RevocationStore remembers logged out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenId string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenId string) (bool, error)
}

type redisRevocations struct{}

func (redisRevocations) Revoke(_ context.Context, tokenId string, ttl time.Duration) error {
	if config.GetRedisDB() == nil {
		config.GetLogger().WithFields(logrus.Fields{"field": "auth.Logout"}).Warn("redis not ready; token stays valid until expiry")
		return nil
	}
	return config.SetRedisValue(revokedTokenPrefix+tokenId, "1", ttl)
}

func (redisRevocations) IsRevoked(_ context.Context, tokenId string) (bool, error) {
	_, exists, err := config.GetRedisValue(revokedTokenPrefix + tokenId)
	return exists, err
}

type User struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

type Service struct {
	operator    Operator
	lifespan    time.Duration
	revocations RevocationStore
	logger      *logrus.Logger
}

func NewService(operator Operator, lifespan time.Duration, revocations RevocationStore, logger *logrus.Logger) *Service {
	if revocations == nil {
		revocations = redisRevocations{}
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{operator: operator, lifespan: lifespan, revocations: revocations, logger: logger}
}

// DefaultService reads the operator from env and revokes through Redis.
func DefaultService() *Service {
	return NewService(OperatorFromEnv(), time.Duration(config.TokenLifespanHours())*time.Hour, nil, nil)
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	if username != s.operator.Username || !s.operator.checkPassword(password) {
		s.logger.WithFields(logrus.Fields{
			"field":    "auth.Login",
			"username": username,
		}).Warn("login rejected")
		return nil, ErrInvalidCredentials
	}
	token, claims, err := utils.JwtGenerate(s.operator.Username, s.operator.Name, s.lifespan)
	if err != nil {
		config.LogError(s.logger, "auth/service.go", "Login", "JwtGenerate", username, err)
		return nil, err
	}
	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
		User:        User{Username: s.operator.Username, Name: s.operator.Name},
	}, nil
}

// Logout revokes the token id of the current request until expiresAt.
func (s *Service) Logout(ctx context.Context, tokenId string, expiresAt time.Time) error {
	if tokenId == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.revocations.Revoke(ctx, tokenId, ttl)
}

func (s *Service) IsRevoked(ctx context.Context, tokenId string) (bool, error) {
	return s.revocations.IsRevoked(ctx, tokenId)
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
