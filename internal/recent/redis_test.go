package recent

import (
	"crypto/tls"
	"testing"

	"github.com/clipdeck/kick-clips-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name         string
		redisURL     string
		wantAddr     string
		wantPassword string
		wantDB       int
		wantTLS      bool
		wantError    bool
	}{
		{name: "simple host:port", redisURL: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "redis URL without password", redisURL: "redis://localhost:6379", wantAddr: "localhost:6379"},
		{name: "redis URL with password", redisURL: "redis://:mypassword@localhost:6379", wantAddr: "localhost:6379", wantPassword: "mypassword"},
		{name: "password and database", redisURL: "redis://:secretpass@redis.example.com:6379/1", wantAddr: "redis.example.com:6379", wantPassword: "secretpass", wantDB: 1},
		{name: "URL-encoded password", redisURL: "redis://:p%40ssw0rd%21@localhost:6379/0", wantAddr: "localhost:6379", wantPassword: "p@ssw0rd!"},
		{name: "rediss uses TLS", redisURL: "rediss://:password@secure.example.com:6380/0", wantAddr: "secure.example.com:6380", wantPassword: "password", wantTLS: true},
		{name: "invalid scheme", redisURL: "http://localhost:6379", wantError: true},
		{name: "invalid database number", redisURL: "redis://localhost:6379/abc", wantError: true},
		{name: "missing host", redisURL: "redis://:password@/0", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRedisURL(tt.redisURL)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddr, got.Addr)
			assert.Equal(t, tt.wantPassword, got.Password)
			assert.Equal(t, tt.wantDB, got.DB)
			assert.Equal(t, tt.wantTLS, got.TLSConfig != nil)
			if tt.wantTLS {
				assert.Equal(t, uint16(tls.VersionTLS12), got.TLSConfig.MinVersion)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(config.RedisConfig{Addr: "localhost:6379", Password: "pw", DB: 3})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "localhost:6379", client.Options().Addr)
	assert.Equal(t, "pw", client.Options().Password)
	assert.Equal(t, 3, client.Options().DB)

	client, err = NewClient(config.RedisConfig{Addr: "redis://:own@cache:6379/2", Password: "pw", DB: 3})
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "own", client.Options().Password)
	assert.Equal(t, 2, client.Options().DB)

	_, err = NewClient(config.RedisConfig{Addr: "ftp://cache"})
	assert.Error(t, err)
}

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore(nil, "", 0)
	assert.Equal(t, DefaultKey, s.key)
	assert.Equal(t, DefaultLimit, s.limit)
}
