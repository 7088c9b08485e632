package config

// This file defines the Redis client constructor.  Redis backs the rate
// limiter on the public booking endpoints and the catalog response cache.
// Redis is optional infrastructure here: the booking flow itself never
// stores state in it, so when no server is reachable the constructor
// returns nil and the middleware runs in pass-through mode.

import (
	"context"
	"crypto/tls"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from environment variables:
// REDIS_ADDR as a host:port shorthand, or REDIS_HOST plus REDIS_PORT
// (which win when both forms are set), REDIS_PASSWORD, REDIS_DB and
// REDIS_TLS.  The server is pinged once with a short timeout; nil is
// returned when it does not answer.
func NewRedisClient() *redis.Client {
	addr := getenvDefault("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}

	var tlsConf *tls.Config
	if boolEnv("REDIS_TLS") {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        intEnvDefault("REDIS_DB", 0),
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
