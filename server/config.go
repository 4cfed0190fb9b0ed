package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"example.com/meetease/pkg/relay"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	PublicURL      string
	RoomCapacity   int
	Redis          RedisConfig
}

// RedisConfig is empty when presence is kept in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func loadConfig() (*Config, error) {
	var origins []string
	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	capacity, err := getEnvInt("ROOM_CAPACITY", relay.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	if capacity < 2 {
		return nil, fmt.Errorf("ROOM_CAPACITY must be at least 2, got %d", capacity)
	}
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		PublicURL:      getEnv("PUBLIC_URL", "http://localhost:5173"),
		RoomCapacity:   capacity,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       db,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
