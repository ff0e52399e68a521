// internal/auth/manager.go
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
)

const adminUserID = "00000000-0000-0000-0000-000000000001"

// User represents a user in the system
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"` // Never expose password hash in JSON
	Roles        []string `json:"roles"`
	Active       bool     `json:"active"`
}

// HasRole reports whether the user holds any of roles
func (u *User) HasRole(roles ...string) bool {
	for _, required := range roles {
		for _, role := range u.Roles {
			if role == required {
				return true
			}
		}
	}
	return false
}

// APIKey represents an API key for authentication
type APIKey struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Key        string    `json:"key,omitempty"` // Plaintext (only shown once)
	HashedKey  string    `json:"-"`
	UserID     string    `json:"user_id"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	Active     bool      `json:"active"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	RateLimit      int // requests per minute per client
	AllowAnonymous bool
	AdminPassword  string   // empty disables password login for admin
	APIKeys        []string // plaintext keys registered to the admin user at startup
}

// AuthManager handles authentication and user management
type AuthManager struct {
	config         AuthConfig
	users          map[string]*User   // userID -> User
	userByUsername map[string]*User   // username -> User
	apiKeys        map[string]*APIKey // hashedKey -> APIKey
	limiter        *RateLimiter
	logger         *observability.Logger
	mu             sync.RWMutex
}

// NewAuthManager creates a new authentication manager
func NewAuthManager(config AuthConfig, logger *observability.Logger) (*AuthManager, error) {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	if config.RateLimit == 0 {
		config.RateLimit = 60
	}
	if config.JWTSecret == "" {
		config.JWTSecret = generateRandomString(32)
	}
	if logger == nil {
		logger = observability.NewLogger("auth")
	}

	am := &AuthManager{
		config:         config,
		users:          make(map[string]*User),
		userByUsername: make(map[string]*User),
		apiKeys:        make(map[string]*APIKey),
		limiter:        NewRateLimiter(time.Minute),
		logger:         logger,
	}

	admin, err := am.createAdminUser(config.AdminPassword)
	if err != nil {
		return nil, err
	}

	for i, key := range config.APIKeys {
		if key == "" {
			continue
		}
		if _, err := am.RegisterAPIKey(admin.ID, fmt.Sprintf("configured-%d", i+1), key); err != nil {
			return nil, err
		}
	}

	logger.Info(context.Background(), "Auth manager initialised", map[string]interface{}{
		"allow_anonymous": config.AllowAnonymous,
		"api_keys":        len(am.apiKeys),
		"rate_limit":      config.RateLimit,
	})

	return am, nil
}

// Config returns the effective configuration
func (am *AuthManager) Config() AuthConfig { return am.config }

// Close stops background work
func (am *AuthManager) Close() { am.limiter.Stop() }

// CreateUserWithPassword creates a new user with a bcrypt-hashed password
func (am *AuthManager) CreateUserWithPassword(username, password string, roles []string) (*User, error) {
	var passwordHash string
	if password != "" {
		hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hashedBytes)
	}

	am.mu.Lock()
	defer am.mu.Unlock()

	if _, exists := am.userByUsername[username]; exists {
		return nil, fmt.Errorf("user already exists: %s", username)
	}

	user := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		Roles:        roles,
		Active:       true,
	}
	am.users[user.ID] = user
	am.userByUsername[username] = user

	return user, nil
}

// Authenticate checks a username and password. Users without a password cannot log in.
func (am *AuthManager) Authenticate(username, password string) (*User, error) {
	user, err := am.GetUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if !user.Active || user.PasswordHash == "" {
		return nil, fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (am *AuthManager) GetUser(userID string) (*User, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()

	user, exists := am.users[userID]
	if !exists {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (am *AuthManager) GetUserByUsername(username string) (*User, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()

	user, exists := am.userByUsername[username]
	if !exists {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	return user, nil
}

// CreateAPIKey generates a new key for a user. A zero expiresIn never expires.
func (am *AuthManager) CreateAPIKey(userID, name string, expiresIn time.Duration) (*APIKey, error) {
	apiKey, err := am.RegisterAPIKey(userID, name, generateAPIKey())
	if err != nil {
		return nil, err
	}
	if expiresIn > 0 {
		am.mu.Lock()
		apiKey.ExpiresAt = apiKey.CreatedAt.Add(expiresIn)
		am.mu.Unlock()
	}
	return apiKey, nil
}

// RegisterAPIKey stores a caller-supplied key for a user
func (am *AuthManager) RegisterAPIKey(userID, name, key string) (*APIKey, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if _, exists := am.users[userID]; !exists {
		return nil, fmt.Errorf("user not found: %s", userID)
	}

	hashedKey := hashAPIKey(key)
	if _, exists := am.apiKeys[hashedKey]; exists {
		return nil, fmt.Errorf("API key already registered")
	}

	apiKey := &APIKey{
		ID:        uuid.New().String(),
		Name:      name,
		Key:       key,
		HashedKey: hashedKey,
		UserID:    userID,
		CreatedAt: time.Now(),
		Active:    true,
	}
	am.apiKeys[hashedKey] = apiKey

	return apiKey, nil
}

// ValidateAPIKey validates an API key and returns the associated user
func (am *AuthManager) ValidateAPIKey(key string) (*User, *APIKey, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	apiKey, exists := am.apiKeys[hashAPIKey(key)]
	if !exists {
		return nil, nil, fmt.Errorf("invalid API key")
	}
	if !apiKey.Active {
		return nil, nil, fmt.Errorf("API key is inactive")
	}
	if !apiKey.ExpiresAt.IsZero() && time.Now().After(apiKey.ExpiresAt) {
		return nil, nil, fmt.Errorf("API key has expired")
	}

	user, exists := am.users[apiKey.UserID]
	if !exists || !user.Active {
		return nil, nil, fmt.Errorf("user not found for API key")
	}

	apiKey.LastUsedAt = time.Now()
	return user, apiKey, nil
}

// RevokeAPIKey deactivates a key by ID
func (am *AuthManager) RevokeAPIKey(keyID string) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	for _, apiKey := range am.apiKeys {
		if apiKey.ID == keyID {
			apiKey.Active = false
			return nil
		}
	}
	return fmt.Errorf("API key not found: %s", keyID)
}

// ListAPIKeys returns a user's keys without their plaintext, oldest first
func (am *AuthManager) ListAPIKeys(userID string) []*APIKey {
	am.mu.RLock()
	defer am.mu.RUnlock()

	keys := make([]*APIKey, 0)
	for _, apiKey := range am.apiKeys {
		if apiKey.UserID != userID {
			continue
		}
		redacted := *apiKey
		redacted.Key = ""
		keys = append(keys, &redacted)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys
}

// CreateJWTToken creates a JWT token for a user
func (am *AuthManager) CreateJWTToken(user *User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(am.config.JWTExpiry)

	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "insidebi-ai",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(am.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateJWTToken validates a JWT token and returns the claims
func (am *AuthManager) ValidateJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(am.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	user, err := am.GetUser(claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("user is inactive")
	}

	return claims, nil
}

// createAdminUser creates the admin user with a fixed ID so tokens survive restarts
func (am *AuthManager) createAdminUser(password string) (*User, error) {
	var passwordHash string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		passwordHash = string(hashed)
	}

	user := &User{
		ID:           adminUserID,
		Username:     "admin",
		PasswordHash: passwordHash,
		Roles:        []string{RoleAdmin, RoleAnalyst},
		Active:       true,
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	am.users[user.ID] = user
	am.userByUsername[user.Username] = user

	return user, nil
}

// generateRandomString generates a random hex string from length random bytes
func generateRandomString(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}

// generateAPIKey generates a new API key with "ibi_" prefix
func generateAPIKey() string {
	return "ibi_" + generateRandomString(32)
}

// hashAPIKey hashes an API key using SHA256
func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
