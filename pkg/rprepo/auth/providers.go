package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/vrrprepo/rprepo/pkg/rprepo/config"
)

// Identity is the profile an identity provider returns after a login
type Identity struct {
	Subject   string
	Name      string
	AvatarURL string
	Email     string
}

// Provider is an external identity provider using the authorization code flow
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

const (
	discordAuthURL  = "https://discord.com/oauth2/authorize"
	discordTokenURL = "https://discord.com/api/oauth2/token"
	discordAPIURL   = "https://discord.com/api"
	discordCDNURL   = "https://cdn.discordapp.com"
)

// Discord logs users in with their Discord account (identify scope)
type Discord struct {
	config oauth2.Config
	apiURL string
}

func NewDiscord(cfg config.OAuthClient) *Discord {
	return &Discord{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"identify"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   discordAuthURL,
				TokenURL:  discordTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL: discordAPIURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) AuthCodeURL(state string) string {
	return d.config.AuthCodeURL(state)
}

type discordUser struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	GlobalName *string `json:"global_name"`
	Avatar     *string `json:"avatar"`
	Email      string  `json:"email"`
}

func (d *Discord) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := d.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("discord token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiURL+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord user lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord user lookup: unexpected status %d", resp.StatusCode)
	}

	var u discordUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("discord user lookup: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("discord user lookup: missing id")
	}

	identity := &Identity{Subject: u.ID, Name: u.Username, Email: u.Email}
	if u.GlobalName != nil && *u.GlobalName != "" {
		identity.Name = *u.GlobalName
	}
	if u.Avatar != nil && *u.Avatar != "" {
		identity.AvatarURL = fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNURL, u.ID, *u.Avatar)
	}
	return identity, nil
}

// Google logs users in with OpenID Connect
type Google struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogle discovers the issuer's endpoints, so it needs network access
func NewGoogle(ctx context.Context, cfg config.OAuthClient) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", cfg.Issuer, err)
	}

	return &Google{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (g *Google) Name() string { return "google" }

func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *Google) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("google token exchange: no id_token in response")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id token claims: %w", err)
	}

	return &Identity{
		Subject:   idToken.Subject,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
		Email:     claims.Email,
	}, nil
}
