package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalYAML = `
server:
  port: 8080
identity:
  jwt_secret: "0123456789abcdef0123456789abcdef"
mail:
  from: "no-reply@mibarrio.test"
smtp:
  host: "localhost"
  port: 1025
storage:
  upload_dir: "./uploads"
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "local", cfg.Identity.Type)
	assert.Equal(t, "smtp", cfg.Mail.Provider)
	assert.Equal(t, "mock", cfg.Storage.Type)
	assert.Equal(t, ConsistencyStrict, cfg.Consistency.Mode)
	assert.True(t, cfg.Strict())
	assert.Equal(t, 8081, cfg.Server.GRPCPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/gif"}, cfg.Storage.AllowedTypes)
	assert.NotEmpty(t, cfg.Scheduler.FinishPastActivities)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONSISTENCY_MODE", "legacy")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.False(t, cfg.Strict())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CorsOrigins)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Server.TrustedProxies)
}

func TestValidate_Errors(t *testing.T) {
	t.Run("ShortSecret", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{Port: 80}, Identity: IdentityConfig{JWTSecret: "short"}}
		assert.ErrorContains(t, cfg.Validate(), "JWT secret")
	})

	t.Run("FirestoreWithoutProject", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{Port: 80}, Database: DatabaseConfig{Type: "firestore"}}
		assert.ErrorContains(t, cfg.Validate(), "project id")
	})

	t.Run("BadTrustedProxy", func(t *testing.T) {
		cfg := &Config{Server: ServerConfig{Port: 80, TrustedProxies: []string{"10.0.0.0/8", "proxy.internal"}}}
		assert.ErrorContains(t, cfg.Validate(), "trusted proxy")
	})

	t.Run("UnknownConsistency", func(t *testing.T) {
		_, err := Load(writeConfig(t, minimalYAML+"consistency:\n  mode: eventual\n"))
		assert.ErrorContains(t, err, "consistency mode")
	})
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("POST", "/api/v1/requests/registration"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("POST", "/api/v1/callable/approveRequest"))
	assert.Equal(t, SecurityResident, GetSecurityLevel("POST", "/api/v1/activities/{id}/enroll"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("GET", "/api/v1/unknown"))
}
