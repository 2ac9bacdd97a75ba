package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"agenthost/internal/apperrors"
)

// Source is a key/value configuration lookup.
// The second return value reports whether the key is set at all.
type Source interface {
	Lookup(key string) (string, bool)
}

// Env reads configuration from the process environment.
// Empty values are treated as unset.
type Env struct{}

// Lookup implements Source.
func (Env) Lookup(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

// Map is an in-memory Source, mainly for tests and embedding.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(key string) (string, bool) {
	value, ok := m[key]
	if value == "" {
		return "", false
	}
	return value, ok
}

// String returns the value for key or defaultValue when unset.
func String(src Source, key, defaultValue string) string {
	if value, ok := src.Lookup(key); ok {
		return value
	}
	return defaultValue
}

// Required returns the value for key or a configuration error naming it.
func Required(src Source, key string) (string, error) {
	value, ok := src.Lookup(key)
	if !ok {
		return "", apperrors.Configuration(key, fmt.Sprintf("required configuration missing: %s", key))
	}
	return value, nil
}

// Float returns a float value for key, defaultValue when unset, or a
// configuration error when the value is not a positive finite number.
func Float(src Source, key string, defaultValue float64) (float64, error) {
	value, ok := src.Lookup(key)
	if !ok {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, apperrors.Configuration(key, fmt.Sprintf("%s must be a positive number, got %q", key, value))
	}
	return f, nil
}

// GetSecretFile reads a secret from a file path.
// Works with Docker secrets (/run/secrets/) and K8s secrets (mounted volumes).
// A file that cannot be read or holds only whitespace is a configuration error
// reported against field.
func GetSecretFile(field, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.Configuration(field, fmt.Sprintf("failed to read %s: %v", field, err))
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", apperrors.Configuration(field, fmt.Sprintf("%s %s is empty", field, path))
	}
	return secret, nil
}
