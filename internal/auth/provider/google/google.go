package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
)

const (
	providerName = "google"

	Issuer  = "https://accounts.google.com"
	JWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	DefaultTimeout = 6 * time.Second

	maxNameRunes = 150
)

var tracer = otel.Tracer("github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/provider/google")

type Config struct {
	ClientID     string
	ClientSecret string

	// DefaultRedirectURL is used for code exchange when the request origin
	// is not one of AllowedOrigins.
	DefaultRedirectURL string
	AllowedOrigins     []string

	Timeout time.Duration
}

type Provider struct {
	cfg         Config
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	client      *http.Client

	keySet  oidc.KeySet
	jwksURL string
}

type Option func(*Provider)

// WithKeySet replaces Google's remote JWKS, mainly for tests.
func WithKeySet(ks oidc.KeySet) Option {
	return func(p *Provider) {
		p.keySet = ks
	}
}

// WithJWKSURL points the remote key set at another JWKS document.
func WithJWKSURL(u string) Option {
	return func(p *Provider) {
		p.jwksURL = u
	}
}

// WithEndpoint overrides the OAuth token endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.oauthConfig.Endpoint = ep
	}
}

func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google: client id is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	p := &Provider{
		cfg: cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoints.Google,
			Scopes: []string{
				oidc.ScopeOpenID,
				"profile",
				"email",
			},
		},
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: probeTransport{base: http.DefaultTransport},
		},
		jwksURL: JWKSURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.keySet == nil {
		// keys are fetched lazily on first verification
		p.keySet = oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), p.client), p.jwksURL)
	}

	p.verifier = oidc.NewVerifier(Issuer, probeKeySet{inner: p.keySet}, &oidc.Config{
		ClientID: cfg.ClientID,
	})

	return p, nil
}

// Name returns the provider identifier used by the registry.
func (p *Provider) Name() string {
	return providerName
}

// RedirectURIFor picks the redirect URI registered for the frontend origin
// that obtained the authorization code.
func (p *Provider) RedirectURIFor(origin string) string {
	o := strings.TrimRight(strings.TrimSpace(origin), "/")
	if o != "" {
		for _, allowed := range p.cfg.AllowedOrigins {
			if strings.EqualFold(o, allowed) {
				return allowed + "/login"
			}
		}
	}
	return p.cfg.DefaultRedirectURL
}

func (p *Provider) prepare(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	ctx = oidc.ClientContext(ctx, p.client)
	ctx, _ = withProbe(ctx)
	return ctx, cancel
}

func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string) (*auth.Identity, error) {
	ctx, span := tracer.Start(ctx, "google.VerifyIDToken")
	defer span.End()

	if strings.TrimSpace(rawIDToken) == "" {
		return nil, apperr.InvalidAssertion("empty id token", nil)
	}

	ctx, cancel := p.prepare(ctx)
	defer cancel()

	identity, err := p.verify(ctx, rawIDToken)
	if err != nil {
		span.SetStatus(codes.Error, "verify failed")
		return nil, err
	}
	return identity, nil
}

func (p *Provider) ExchangeCode(ctx context.Context, code string, origin string) (*auth.Identity, error) {
	ctx, span := tracer.Start(ctx, "google.ExchangeCode")
	defer span.End()

	if strings.TrimSpace(code) == "" {
		return nil, apperr.InvalidAssertion("empty authorization code", nil).WithCode("invalid_auth_code")
	}
	if p.cfg.ClientSecret == "" {
		return nil, apperr.Internal("google code exchange is not configured", nil)
	}

	ctx, cancel := p.prepare(ctx)
	defer cancel()

	oc := *p.oauthConfig
	oc.RedirectURL = p.RedirectURIFor(origin)

	token, err := oc.Exchange(ctx, code)
	if err != nil {
		span.SetStatus(codes.Error, "exchange failed")
		return nil, classify(ctx, err, "invalid_auth_code", "authorization code rejected")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		span.SetStatus(codes.Error, "no id token")
		return nil, apperr.InvalidAssertion("google did not return an id token", nil).WithCode("invalid_auth_code")
	}

	identity, err := p.verify(ctx, rawIDToken)
	if err != nil {
		span.SetStatus(codes.Error, "verify failed")
		return nil, err
	}
	return identity, nil
}

// verify expects ctx to come from prepare.
func (p *Provider) verify(ctx context.Context, rawIDToken string) (*auth.Identity, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, classify(ctx, err, "invalid_id_token", "id token rejected")
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}

	if err := idToken.Claims(&claims); err != nil {
		return nil, apperr.InvalidAssertion("id token claims unreadable", err)
	}

	if claims.Subject == "" || claims.Email == "" {
		return nil, apperr.InvalidAssertion("id token missing required claims", nil)
	}

	logger.Info("google id token verified", map[string]any{
		"issuer":          idToken.Issuer,
		"subject_present": claims.Subject != "",
		"email_verified":  claims.EmailVerified,
		"expiry_unix":     idToken.Expiry.Unix(),
	})

	return &auth.Identity{
		Provider:      providerName,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          truncateRunes(strings.TrimSpace(claims.Name), maxNameRunes),
		AvatarURL:     claims.Picture,
	}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
