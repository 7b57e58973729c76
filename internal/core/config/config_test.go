package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadE_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_JWT_SECRET", "s3cret")

	c, err := LoadE("")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Auth.MaxLoginAttempts)
	assert.Equal(t, 15, c.Auth.LockoutDurationMin)
	assert.Equal(t, 15*time.Minute, c.Auth.LockoutDuration())
	assert.Equal(t, 12, c.Auth.BcryptCost)
	assert.Equal(t, "postgres", c.DB.Driver)
	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, "session", c.JWT.CookieName)
	assert.Equal(t, 60, c.JWT.AccessTokenTTLMin)
	assert.Equal(t, "s3cret", c.JWT.Secret)
	assert.Equal(t, 30, c.Redis.ProfileTTLSec)
	assert.Empty(t, c.Redis.Addr)
	assert.Empty(t, c.App.HTTP.AllowOrigins)
}

func TestLoadE_FileAndEnvOverride(t *testing.T) {
	p := writeConfig(t, `
app:
  http:
    allowOrigins: ["http://a.local", "http://b.local"]
jwt:
  secret: from-file
  issuer: test-issuer
db:
  driver: mysql
  dsn: mysql://root:pw@127.0.0.1:3306/auth
auth:
  maxLoginAttempts: 3
  lockoutDurationMin: 30
  bcryptCost: 10
redis:
  addr: 127.0.0.1:6379
`)
	t.Setenv("APP_AUTH_MAXLOGINATTEMPTS", "7")
	t.Setenv("APP_DB_PASSWORD", "override")

	c, err := LoadE(p)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.JWT.Secret)
	assert.Equal(t, "test-issuer", c.JWT.Issuer)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, c.App.HTTP.AllowOrigins)
	assert.Equal(t, "mysql", c.DB.Driver)
	assert.Equal(t, "override", c.DB.Password)
	assert.Equal(t, 7, c.Auth.MaxLoginAttempts)
	assert.Equal(t, 30*time.Minute, c.Auth.LockoutDuration())
	assert.Equal(t, 10, c.Auth.BcryptCost)
	assert.Equal(t, "127.0.0.1:6379", c.Redis.Addr)
}

func TestLoadE_ExplicitMissingFile(t *testing.T) {
	_, err := LoadE(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadE_Validation(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("APP_JWT_SECRET", "")
	_, err := LoadE("")
	assert.ErrorContains(t, err, "jwt.secret")

	p := writeConfig(t, "jwt:\n  secret: x\nauth:\n  maxLoginAttempts: 0\n")
	_, err = LoadE(p)
	assert.ErrorContains(t, err, "maxLoginAttempts")

	p = writeConfig(t, "jwt:\n  secret: x\nauth:\n  lockoutDurationMin: -1\n")
	_, err = LoadE(p)
	assert.ErrorContains(t, err, "lockoutDurationMin")
}
