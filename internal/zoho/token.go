package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/sync/singleflight"

	"github.com/shrimpsizemoose/medexperts/internal/metrics"
)

const (
	tokenPath          = "/oauth/v2/token"
	defaultTokenTTL    = 3600
	maxTokenTTL        = 24 * 3600
	expirySafetyMargin = 60 * time.Second
	maxBodyBytes       = 4 << 20
)

type Credentials struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// CachedToken is the last access token handed out by the provider.
// ExpiresAt already has the safety margin subtracted.
type CachedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenManager hands out Zoho access tokens, refreshing them from the
// long-lived refresh token when the cached one has expired. One instance
// lives for the whole process; concurrent refreshes are collapsed into one.
type TokenManager struct {
	creds      Credentials
	tokenURL   string
	httpClient *http.Client
	clock      clockwork.Clock

	mu     sync.RWMutex
	cached CachedToken
	flight singleflight.Group
}

func NewTokenManager(accountsURL string, creds Credentials, httpClient *http.Client, clock clockwork.Clock) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &TokenManager{
		creds:      creds,
		tokenURL:   strings.TrimRight(accountsURL, "/") + tokenPath,
		httpClient: httpClient,
		clock:      clock,
	}
}

// AccessToken returns the cached token while it is still valid and refreshes
// it otherwise. Refresh failures are reported as *AuthProviderError.
func (tm *TokenManager) AccessToken(ctx context.Context) (string, error) {
	if token, ok := tm.current(); ok {
		return token, nil
	}

	v, err, _ := tm.flight.Do("refresh", func() (any, error) {
		if token, ok := tm.current(); ok {
			return token, nil
		}
		// the refresh is shared, so it must outlive a cancelled first caller
		return tm.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cached returns a snapshot of the cached token, valid or not.
func (tm *TokenManager) Cached() CachedToken {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.cached
}

func (tm *TokenManager) current() (string, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if tm.cached.Token == "" || !tm.clock.Now().Before(tm.cached.ExpiresAt) {
		return "", false
	}
	return tm.cached.Token, true
}

func (tm *TokenManager) refresh(ctx context.Context) (string, error) {
	now := tm.clock.Now()

	params := url.Values{}
	params.Set("refresh_token", tm.creds.RefreshToken)
	params.Set("client_id", tm.creds.ClientID)
	params.Set("client_secret", tm.creds.ClientSecret)
	params.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		metrics.ZohoTokenRefreshes.WithLabelValues("error").Inc()
		return "", &AuthProviderError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.ZohoTokenRefreshes.WithLabelValues("error").Inc()
		return "", &AuthProviderError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ZohoTokenRefreshes.WithLabelValues("rejected").Inc()
		logger.Error.Printf("Zoho token refresh rejected with status %d", resp.StatusCode)
		return "", &AuthProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   *int64 `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		metrics.ZohoTokenRefreshes.WithLabelValues("error").Inc()
		return "", &AuthProviderError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	// Zoho reports a bad refresh token as 200 {"error": "invalid_code"}
	if tokenResp.Error != "" || tokenResp.AccessToken == "" {
		metrics.ZohoTokenRefreshes.WithLabelValues("rejected").Inc()
		logger.Error.Printf("Zoho token refresh returned no access token: %s", tokenResp.Error)
		return "", &AuthProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	expiresIn := int64(defaultTokenTTL)
	if tokenResp.ExpiresIn != nil && *tokenResp.ExpiresIn > 0 {
		expiresIn = min(*tokenResp.ExpiresIn, maxTokenTTL)
	}
	expiresAt := now.Add(time.Duration(expiresIn)*time.Second - expirySafetyMargin)

	tm.mu.Lock()
	tm.cached = CachedToken{Token: tokenResp.AccessToken, ExpiresAt: expiresAt}
	tm.mu.Unlock()

	metrics.ZohoTokenRefreshes.WithLabelValues("success").Inc()
	logger.Debug.Printf("Refreshed zoho access token, valid until %s", expiresAt.Format(time.RFC3339))

	return tokenResp.AccessToken, nil
}
