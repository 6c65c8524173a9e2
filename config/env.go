package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvPrivateKey  = "ARBENGINE_PRIVATE_KEY"
	EnvRPCEndpoint = "ARBENGINE_RPC_ENDPOINT"
	EnvConfigFile  = "ARBENGINE_CONFIG"
)

// SecureConfig holds secrets that never enter the config file.
type SecureConfig struct {
	PrivateKey string
}

// LoadEnv loads environment variables from a .env file when present.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadSecureConfig reads secrets from the environment.
func LoadSecureConfig() (*SecureConfig, error) {
	privateKey, err := GetRequiredEnv(EnvPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("private key not found: %w", err)
	}
	return &SecureConfig{PrivateKey: privateKey}, nil
}

// GetEnvWithDefault gets an environment variable with a default value.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv gets an environment variable that must be set.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
