package config

// Redis backs the token bucket on the code and verify routes and the admin
// stats cache.  Arbitration state never goes to Redis.  When the server is
// unreachable at startup NewRedisClient returns nil and both features
// degrade to pass-through.

import (
    "context"
    "crypto/tls"
    "log"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig is read from REDIS_ADDR, or REDIS_HOST and REDIS_PORT (which
// win when both are set), plus REDIS_PASSWORD, REDIS_DB and REDIS_TLS.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads the REDIS_* variables; the address defaults to
// localhost:6379.
func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
}

// NewRedisClient connects and pings with a short timeout.  It returns nil
// when the server does not answer.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    opts := &redis.Options{
        Addr:     cfg.Addr,
        Password: cfg.Password,
        DB:       cfg.DB,
    }
    if cfg.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        log.Printf("redis: %s unreachable, rate limiting and caching disabled: %v", cfg.Addr, err)
        _ = client.Close()
        return nil
    }
    return client
}
