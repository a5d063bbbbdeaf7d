package config

// This file defines a Redis client constructor for the application.  Redis
// backs the booking read cache.  If connection fails during startup, the
// constructor returns nil and callers degrade gracefully by serving every
// read from the database.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/kelseyhightower/envconfig"
    "github.com/redis/go-redis/v9"
)

// RedisConfig holds REDIS_* connection settings.  Host and Port take
// precedence over Addr when both are set.
type RedisConfig struct {
    Addr     string `envconfig:"ADDR" default:"localhost:6379"` // host:port used when Host/Port are unset
    Host     string `envconfig:"HOST"`                          // optional host override
    Port     string `envconfig:"PORT"`                          // optional port override
    Password string `envconfig:"PASSWORD"`                      // empty for no AUTH
    DB       int    `envconfig:"DB" default:"0"`                // logical database index
    TLS      bool   `envconfig:"TLS" default:"false"`           // dial with TLS (managed Redis)
}

// LoadRedisConfig reads REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
    var c RedisConfig
    err := envconfig.Process("redis", &c)
    return c, err
}

// Address resolves the host:port to dial.
func (c RedisConfig) Address() string {
    // Only a complete host/port pair overrides Addr.
    if c.Host != "" && c.Port != "" {
        return c.Host + ":" + c.Port
    }
    return c.Addr
}

// NewRedisClient instantiates a Redis client from cfg.  The returned client
// is nil if the server does not answer a ping within two seconds.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    // TLS is opt-in.  Certificate verification is skipped because managed
    // Redis endpoints often present certificates for internal hostnames.
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{InsecureSkipVerify: true}
    }
    // Build the client; no connection is made until the first command.
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Address(),
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    // Ping the server with a short timeout.  Return nil on failure.
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
