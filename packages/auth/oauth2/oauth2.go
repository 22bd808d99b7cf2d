package oauth2

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/request"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	// Password is the resource owner password grant.
	Password     GrantType = "password"
	RefreshToken GrantType = "refresh_token"
)

// ParseGrantType accepts the grant names used in token requests.
func ParseGrantType(s string) (GrantType, error) {
	switch g := GrantType(strings.ToLower(strings.TrimSpace(s))); g {
	case ClientCredentials, Password, RefreshToken:
		return g, nil
	default:
		return "", fmt.Errorf("unsupported OAuth2 grant type: %s", s)
	}
}

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	RefreshToken string // For refresh_token grant
	GrantType    GrantType
}

// Validate checks that the fields the grant needs are present.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: token URL is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("oauth2: client ID is required")
	}
	switch c.GrantType {
	case ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: password grant requires a username")
		}
	case RefreshToken:
		if c.RefreshToken == "" {
			return fmt.Errorf("oauth2: refresh_token grant requires a refresh token")
		}
	default:
		return fmt.Errorf("unsupported OAuth2 grant type: %s", c.GrantType)
	}
	return nil
}

// ConfigFromSource reads prefixed keys from src:
//
//	<prefix>TOKEN_URL, <prefix>CLIENT_ID       required
//	<prefix>CLIENT_SECRET, <prefix>SCOPES      optional, scopes comma separated
//	<prefix>REFRESH_TOKEN                      selects the refresh_token grant
//	<prefix>USERNAME, <prefix>PASSWORD         select the password grant
//	<prefix>GRANT_TYPE                         overrides the inferred grant
//
// Missing required keys are reported together as an *env.MissingError.
func ConfigFromSource(src env.Source, prefix string) (*Config, error) {
	required, err := env.Require(src, prefix+"TOKEN_URL", prefix+"CLIENT_ID")
	if err != nil {
		return nil, err
	}

	get := func(key string) string {
		v, _ := src.Lookup(prefix + key)
		return v
	}

	cfg := &Config{
		TokenURL:     required[prefix+"TOKEN_URL"],
		ClientID:     required[prefix+"CLIENT_ID"],
		ClientSecret: get("CLIENT_SECRET"),
		Username:     get("USERNAME"),
		Password:     get("PASSWORD"),
		RefreshToken: get("REFRESH_TOKEN"),
	}
	if scopes := get("SCOPES"); scopes != "" {
		for _, s := range strings.Split(scopes, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Scopes = append(cfg.Scopes, s)
			}
		}
	}

	switch {
	case get("GRANT_TYPE") != "":
		g, err := ParseGrantType(get("GRANT_TYPE"))
		if err != nil {
			return nil, err
		}
		cfg.GrantType = g
	case cfg.RefreshToken != "":
		cfg.GrantType = RefreshToken
	case cfg.Username != "":
		cfg.GrantType = Password
	default:
		cfg.GrantType = ClientCredentials
	}

	if cfg.GrantType == RefreshToken {
		if _, err := env.Require(src, prefix+"REFRESH_TOKEN"); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Token is an access token returned by a token endpoint.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time

	raw *xoauth2.Token
}

// IsExpired checks if the token is expired
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	// Add a small buffer (30 seconds) to account for clock skew
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// Extra returns a non-standard field from the token response, such as
// Imgur's account_username.
func (t *Token) Extra(key string) any {
	if t.raw == nil {
		return nil
	}
	return t.raw.Extra(key)
}

func newToken(raw *xoauth2.Token) *Token {
	return &Token{
		AccessToken:  raw.AccessToken,
		TokenType:    raw.Type(),
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    raw.Expiry,
		raw:          raw,
	}
}

// Provider handles OAuth2 token acquisition
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache

	// mu serializes fetches so concurrent callers share one token request.
	mu sync.Mutex
}

type ProviderOption func(*Provider)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithCache shares a token cache between providers.
func WithCache(c *TokenCache) ProviderOption {
	return func(p *Provider) {
		p.cache = c
	}
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: NewTokenCache(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a cached access token, requesting a new one when none is
// cached or the cached one has expired.
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cacheKey := p.cacheKey()
	if token := p.cache.Get(cacheKey); token != nil {
		return token, nil
	}

	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	raw, err := p.fetch(context.WithValue(ctx, xoauth2.HTTPClient, p.httpClient))
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	token := newToken(raw)
	// Servers may rotate the refresh token; later refreshes must use the new one.
	if token.RefreshToken != "" {
		p.config.RefreshToken = token.RefreshToken
	}
	p.cache.Set(cacheKey, token)
	return token, nil
}

// Auth returns bearer authentication carrying a valid access token.
func (p *Provider) Auth(ctx context.Context) (request.Auth, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return request.Auth{}, err
	}
	return request.OAuth2Auth(token.AccessToken), nil
}

// Invalidate drops the cached token so the next call requests a new one.
func (p *Provider) Invalidate() {
	p.cache.Delete(p.cacheKey())
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", p.config.GrantType, p.config.TokenURL, p.config.ClientID, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetch(ctx context.Context) (*xoauth2.Token, error) {
	switch p.config.GrantType {
	case ClientCredentials:
		cc := &clientcredentials.Config{
			ClientID:     p.config.ClientID,
			ClientSecret: p.config.ClientSecret,
			TokenURL:     p.config.TokenURL,
			Scopes:       p.config.Scopes,
		}
		return cc.Token(ctx)
	case Password:
		return p.oauthConfig().PasswordCredentialsToken(ctx, p.config.Username, p.config.Password)
	case RefreshToken:
		// An empty access token is never valid, which forces a refresh.
		return p.oauthConfig().TokenSource(ctx, &xoauth2.Token{RefreshToken: p.config.RefreshToken}).Token()
	default:
		return nil, fmt.Errorf("unsupported OAuth2 grant type: %s", p.config.GrantType)
	}
}

func (p *Provider) oauthConfig() *xoauth2.Config {
	return &xoauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		Scopes:       p.config.Scopes,
		Endpoint:     xoauth2.Endpoint{TokenURL: p.config.TokenURL},
	}
}
