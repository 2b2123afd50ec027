package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentwatch/internal/config"
	"agentwatch/internal/middleware"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("operator login is not configured")
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

type AuthService interface {
	// Login checks the operator's password and returns a signed token with its expiry.
	Login(name, password string) (string, time.Time, error)
}

type authService struct {
	operators map[string]string
	secret    []byte
	ttl       time.Duration
	logger    *zap.Logger
}

func NewAuthService(operators []config.Operator, secret []byte, ttl time.Duration, logger *zap.Logger) AuthService {
	byName := make(map[string]string, len(operators))
	for _, op := range operators {
		byName[op.Name] = op.PasswordHash
	}
	return &authService{
		operators: byName,
		secret:    secret,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *authService) Login(name, password string) (string, time.Time, error) {
	if len(s.secret) == 0 || len(s.operators) == 0 {
		return "", time.Time{}, ErrAuthDisabled
	}

	encoded, ok := s.operators[name]
	if !ok {
		s.logger.Warn("Login attempt for unknown operator", zap.String("operator", name))
		return "", time.Time{}, ErrInvalidCredentials
	}
	match, err := VerifyPassword(encoded, password)
	if err != nil {
		s.logger.Error("Stored password hash is unreadable", zap.String("operator", name), zap.Error(err))
		return "", time.Time{}, ErrInvalidCredentials
	}
	if !match {
		s.logger.Warn("Wrong password for operator", zap.String("operator", name))
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := middleware.IssueToken(s.secret, name, s.ttl)
	if err != nil {
		s.logger.Error("Failed to generate JWT token", zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("Operator logged in", zap.String("operator", name))
	return token, expiresAt, nil
}

// HashPassword returns password hashed with Argon2id in the PHC string format:
// $argon2id$v=19$m=65536,t=1,p=4$SALT$HASH
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword reports whether password matches the encoded hash.
func VerifyPassword(encoded, password string) (bool, error) {
	sections := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(sections) != 5 || sections[0] != "argon2id" {
		return false, errors.New("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(sections[1], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid hash version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, fmt.Errorf("invalid hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
