package config

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/time/rate"
)

type Config struct {
	DatabaseDSN       string
	ServerAddr        string
	AccessSigningKey  []byte
	RefreshSigningKey []byte
	AllowedOrigins    []string
	// AuthRateLimit throttles the credential endpoints per client IP.
	AuthRateLimit rate.Limit
	AuthRateBurst int
}

const (
	defaultAuthRateLimit = rate.Limit(2)
	defaultAuthRateBurst = 5
)

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64AccessSecret, base64RefreshSecret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	accessKey, err := decodeSigningSecret(base64AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("decode access signing secret: %w", err)
	}

	refreshKey, err := decodeSigningSecret(base64RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("decode refresh signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:       databaseDSN,
		ServerAddr:        serverAddr,
		AccessSigningKey:  accessKey,
		RefreshSigningKey: refreshKey,
		AllowedOrigins:    allowedOrigins,
		AuthRateLimit:     defaultAuthRateLimit,
		AuthRateBurst:     defaultAuthRateBurst,
	}, nil
}
