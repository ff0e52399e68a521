// internal/auth/manager_test.go
package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

func newTestAuthManager(t *testing.T, config AuthConfig) *AuthManager {
	t.Helper()
	am, err := NewAuthManager(config, observability.NewLogger("auth").WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	t.Cleanup(am.Close)
	return am
}

func TestNewAuthManagerDefaults(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{})

	cfg := am.Config()
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Len(t, cfg.JWTSecret, 64)

	admin, err := am.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, adminUserID, admin.ID)
	assert.True(t, admin.HasRole(RoleAdmin))
}

func TestConfiguredAPIKeys(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{APIKeys: []string{"key-one", "", "key-two"}})

	for _, key := range []string{"key-one", "key-two"} {
		user, apiKey, err := am.ValidateAPIKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, adminUserID, user.ID)
		assert.False(t, apiKey.LastUsedAt.IsZero())
	}

	assert.Len(t, am.ListAPIKeys(adminUserID), 2)

	_, _, err := am.ValidateAPIKey("key-three")
	assert.EqualError(t, err, "invalid API key")
}

func TestDuplicateConfiguredAPIKey(t *testing.T) {
	_, err := NewAuthManager(AuthConfig{APIKeys: []string{"same", "same"}}, nil)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{AdminPassword: "s3cret"})
	_, err := am.CreateUserWithPassword("analyst", "", []string{RoleAnalyst})
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"admin with password", "admin", "s3cret", false},
		{"wrong password", "admin", "nope", true},
		{"unknown user", "ghost", "s3cret", true},
		{"user without password cannot log in", "analyst", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := am.Authenticate(tt.username, tt.password)
			if tt.wantErr {
				assert.EqualError(t, err, "invalid credentials")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
		})
	}
}

func TestCreateUserWithPassword(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{})

	user, err := am.CreateUserWithPassword("analyst", "pw", []string{RoleAnalyst})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "pw", user.PasswordHash)

	_, err = am.CreateUserWithPassword("analyst", "pw", nil)
	assert.EqualError(t, err, "user already exists: analyst")

	found, err := am.GetUser(user.ID)
	require.NoError(t, err)
	assert.Same(t, user, found)
}

func TestAPIKeyLifecycle(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{})

	apiKey, err := am.CreateAPIKey(adminUserID, "ci", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, apiKey.Key, "ibi_")
	assert.WithinDuration(t, apiKey.CreatedAt.Add(time.Hour), apiKey.ExpiresAt, time.Second)

	_, _, err = am.ValidateAPIKey(apiKey.Key)
	require.NoError(t, err)

	listed := am.ListAPIKeys(adminUserID)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Key)

	require.NoError(t, am.RevokeAPIKey(apiKey.ID))
	_, _, err = am.ValidateAPIKey(apiKey.Key)
	assert.EqualError(t, err, "API key is inactive")

	assert.Error(t, am.RevokeAPIKey("missing"))

	_, err = am.CreateAPIKey("no-such-user", "x", 0)
	assert.Error(t, err)
}

func TestExpiredAPIKey(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{})

	apiKey, err := am.CreateAPIKey(adminUserID, "short", time.Nanosecond)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, _, err = am.ValidateAPIKey(apiKey.Key)
	assert.EqualError(t, err, "API key has expired")
}

func TestJWTToken(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{JWTSecret: "test-secret"})
	admin, err := am.GetUser(adminUserID)
	require.NoError(t, err)

	token, expiresAt, err := am.CreateJWTToken(admin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)

	claims, err := am.ValidateJWTToken(token)
	require.NoError(t, err)
	assert.Equal(t, adminUserID, claims.UserID)
	assert.Equal(t, "insidebi-ai", claims.Issuer)

	t.Run("wrong secret", func(t *testing.T) {
		other := newTestAuthManager(t, AuthConfig{JWTSecret: "other-secret"})
		_, err := other.ValidateJWTToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := newTestAuthManager(t, AuthConfig{JWTSecret: "test-secret", JWTExpiry: -time.Minute})
		token, _, err := expired.CreateJWTToken(admin)
		require.NoError(t, err)
		_, err = am.ValidateJWTToken(token)
		assert.Error(t, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		token, _, err := am.CreateJWTToken(&User{ID: "ghost", Username: "ghost"})
		require.NoError(t, err)
		_, err = am.ValidateJWTToken(token)
		assert.EqualError(t, err, "user not found: ghost")
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: adminUserID})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = am.ValidateJWTToken(s)
		assert.Error(t, err)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(50 * time.Millisecond)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("client", 3), "request %d", i)
	}
	assert.False(t, rl.Allow("client", 3))
	assert.True(t, rl.Allow("other", 3))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("client", 3))

	stats := rl.GetStats()
	assert.Equal(t, 2, stats["total_clients"])

	// Stop is idempotent
	rl.Stop()
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"", 0, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"720h", 720 * time.Hour, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := parseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
