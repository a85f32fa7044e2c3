package recent

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/clipdeck/kick-clips-go/internal/config"
	"github.com/redis/go-redis/v9"
)

// ParseRedisURL parses a Redis address into client options.
// Supports formats:
//   - redis://[:password@]host:port[/db]
//   - rediss://[:password@]host:port[/db] (TLS)
//   - host:port (no password)
func ParseRedisURL(redisURL string) (*redis.Options, error) {
	opt := &redis.Options{DB: 0}

	if !strings.Contains(redisURL, "://") {
		opt.Addr = redisURL
		return opt, nil
	}

	u, err := url.Parse(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	switch u.Scheme {
	case "redis":
	case "rediss":
		opt.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	default:
		return nil, fmt.Errorf("unsupported redis URL scheme: %s (expected 'redis' or 'rediss')", u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("redis URL missing host")
	}
	opt.Addr = u.Host

	if u.User != nil {
		if password, hasPassword := u.User.Password(); hasPassword {
			opt.Password = password
		}
	}

	if u.Path != "" && u.Path != "/" {
		dbStr := strings.TrimPrefix(u.Path, "/")
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid database number in redis URL: %s", dbStr)
		}
		opt.DB = db
	}

	return opt, nil
}

// NewClient builds a Redis client from cfg. Password and DB from cfg apply
// when the address does not carry its own.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := ParseRedisURL(cfg.Addr)
	if err != nil {
		return nil, err
	}
	if opt.Password == "" {
		opt.Password = cfg.Password
	}
	if opt.DB == 0 {
		opt.DB = cfg.DB
	}
	return redis.NewClient(opt), nil
}
