// Package common provides logging, configuration and small shared helpers
// used across the collector's packages.
package common

import (
	"fmt"
	"os"
	"strconv"
)

// MaskSecret masks a sensitive string for safe logging, showing only the
// first and last 4 characters of values longer than 8 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// GetEnv retrieves an environment variable with a fallback default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an integer environment variable with a fallback default.
func GetEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvBool retrieves a boolean environment variable with a fallback default.
func GetEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	switch valueStr {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// Must panics if err is not nil, otherwise returns value. Intended for
// initialization code that should fail fast.
func Must[T any](value T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("common.Must: %v", err))
	}
	return value
}

// MustNoError panics if err is not nil.
func MustNoError(err error) {
	if err != nil {
		panic(fmt.Sprintf("common.MustNoError: %v", err))
	}
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}

// PtrValue returns the value of a pointer, or the zero value if nil.
func PtrValue[T any](ptr *T) T {
	if ptr == nil {
		var zero T
		return zero
	}
	return *ptr
}
