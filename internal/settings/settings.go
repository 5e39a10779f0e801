package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"docverify-service/internal/client"
	"docverify-service/internal/hashing"
	"docverify-service/internal/util"
)

var (
	ErrNotFound      = errors.New("setting not found")
	ErrNotConfigured = errors.New("settings store is not configured")
)

const adminPasswordKey = "admin_password"

// Service stores operator-facing settings in Redis. The admin password is
// stored as an argon2id hash, never as plaintext.
type Service struct {
	redis     *client.RedisClient
	hasher    *hashing.Hasher
	keyPrefix string
}

func NewService(redis *client.RedisClient, hasher *hashing.Hasher, namespace string) *Service {
	return &Service{
		redis:     redis,
		hasher:    hasher,
		keyPrefix: namespace + ":settings:",
	}
}

func (s *Service) Enabled() bool {
	return s != nil && s.redis != nil
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}
	value, err := s.redis.Get(ctx, s.keyPrefix+key)
	if errors.Is(err, client.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if err := s.redis.Set(ctx, s.keyPrefix+key, value, 0); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	util.Debug("setting updated", zap.String("key", key))
	return nil
}

// SetAdminPassword hashes and stores the operator password.
func (s *Service) SetAdminPassword(ctx context.Context, plaintext string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if len(plaintext) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters")
	}

	result, err := s.hasher.HashSecret(plaintext, "admin-password")
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode admin password hash: %w", err)
	}
	return s.Set(ctx, adminPasswordKey, string(encoded))
}

// CheckAdminPassword verifies a login attempt against the stored hash.
// A missing password setting means no password has been provisioned yet.
func (s *Service) CheckAdminPassword(ctx context.Context, plaintext string) (bool, error) {
	encoded, err := s.Get(ctx, adminPasswordKey)
	if err != nil {
		return false, err
	}

	var stored hashing.HashResult
	if err := json.Unmarshal([]byte(encoded), &stored); err != nil {
		return false, fmt.Errorf("stored admin password hash is corrupt: %w", err)
	}
	return s.hasher.VerifySecret(plaintext, "admin-password", &stored)
}
