package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	// ErrMissingFlowClient indicates the OAuth client credentials were not configured.
	ErrMissingFlowClient = errors.New("auth: oauth client id and secret required")
	// ErrMissingAuthCode indicates the provider callback did not carry an authorization code.
	ErrMissingAuthCode = errors.New("auth: authorization code required")
	// ErrMissingIDTokenInExchange indicates the token response carried no id_token.
	ErrMissingIDTokenInExchange = errors.New("auth: token exchange response missing id_token")
)

// FlowConfig describes the Google authorization-code exchange.
type FlowConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Flow drives the provider redirect and code exchange for sign-in.
type Flow struct {
	oauthConfig *oauth2.Config
}

// NewFlow constructs the OAuth flow with validated configuration.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, ErrMissingFlowClient
	}
	return &Flow{
		oauthConfig: &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
	}, nil
}

// NewState produces a random state nonce for the redirect round trip.
func (f *Flow) NewState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthURL returns the provider consent URL bound to the supplied state.
func (f *Flow) AuthURL(state string) string {
	return f.oauthConfig.AuthCodeURL(state)
}

// ExchangeCode swaps the callback code for tokens and returns the raw ID token.
func (f *Flow) ExchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", ErrMissingAuthCode
	}
	token, err := f.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", ErrMissingIDTokenInExchange
	}
	return rawIDToken, nil
}
