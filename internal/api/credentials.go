package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"finquery-client/internal/dto"
	"finquery-client/internal/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

// CredentialProvider yields a bearer token for outgoing requests.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

const tokenCacheKey = "access_token"

// LoginCredentials signs in with the configured account and caches the
// bearer token until shortly before its JWT expiry. Invalidate drops
// the cache entry so the next request logs in again.
type LoginCredentials struct {
	baseURL  string
	email    string
	password string
	client   *http.Client
	cache    *cache.Cache
	logger   logger.ILogger
}

func NewLoginCredentials(baseURL, email, password string, log logger.ILogger) *LoginCredentials {
	// Fallback lifetime when the token carries no usable exp claim.
	c := cache.New(55*time.Minute, 10*time.Minute)
	return &LoginCredentials{
		baseURL:  baseURL,
		email:    email,
		password: password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  c,
		logger: log,
	}
}

func (p *LoginCredentials) Token(ctx context.Context) (string, error) {
	if cached, found := p.cache.Get(tokenCacheKey); found {
		return cached.(string), nil
	}

	token, err := p.login(ctx)
	if err != nil {
		return "", err
	}

	p.cache.Set(tokenCacheKey, token, tokenTTL(token))
	return token, nil
}

func (p *LoginCredentials) Invalidate() {
	p.cache.Delete(tokenCacheKey)
}

func (p *LoginCredentials) login(ctx context.Context) (string, error) {
	payloadBytes, err := json.Marshal(dto.LoginRequest{Email: p.email, Password: p.password})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/login", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("login error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var loginResp dto.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if loginResp.AccessToken == "" {
		return "", fmt.Errorf("login response carried no token")
	}

	if p.logger != nil {
		p.logger.Info("Credentials", "Signed in", map[string]interface{}{"email": p.email})
	}
	return loginResp.AccessToken, nil
}

// tokenTTL derives the cache lifetime from the token's exp claim. The
// token is parsed unverified; the server owns the signing key.
func tokenTTL(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return cache.DefaultExpiration
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return cache.DefaultExpiration
	}

	// Refresh a minute early rather than racing the expiry.
	ttl := time.Until(exp.Time) - time.Minute
	if ttl <= 0 {
		return cache.DefaultExpiration
	}
	return ttl
}
