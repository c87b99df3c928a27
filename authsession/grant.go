package authsession

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Grant types sent as grant_type to the token endpoint.
const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"
)

// Credentials identify the client to the token endpoint.
//
// If both ID and Secret are set, the client authenticates with HTTP Basic
// authentication. If only ID is set, it is sent as the client_id parameter.
type Credentials struct {
	ID     string
	Secret string
}

// Parameters returns the credentials as form parameters: client_id and, if
// set, client_secret. Useful for servers that expect credentials in the body.
func (c Credentials) Parameters() map[string]string {
	params := map[string]string{"client_id": c.ID}
	if c.Secret != "" {
		params["client_secret"] = c.Secret
	}
	return params
}

// BasicAuthorization returns the HTTP Basic Authorization header value for the
// credentials, or "" if no secret is set.
func (c Credentials) BasicAuthorization() string {
	if c.Secret == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.ID+":"+c.Secret))
}

// Grant describes how the client proves its authorization to the token endpoint.
// It is implemented by PasswordGrant, RefreshGrant, AccessTokenGrant and ExtensionGrant.
type Grant interface {
	// Parameters returns the form parameters of the grant, including grant_type.
	Parameters() map[string]string

	grant()
}

// PasswordGrant is the resource owner password credentials grant.
type PasswordGrant struct {
	Username string
	Password string
}

// Parameters implements Grant.
func (g PasswordGrant) Parameters() map[string]string {
	return map[string]string{
		"grant_type": GrantTypePassword,
		"username":   g.Username,
		"password":   g.Password,
	}
}

func (PasswordGrant) grant() {}

// RefreshGrant exchanges a refresh token for a new access token.
type RefreshGrant struct {
	RefreshToken string
}

// Parameters implements Grant.
func (g RefreshGrant) Parameters() map[string]string {
	return map[string]string{
		"grant_type":    GrantTypeRefreshToken,
		"refresh_token": g.RefreshToken,
	}
}

func (RefreshGrant) grant() {}

// AccessTokenGrant refreshes using the access token itself as the refresh token.
type AccessTokenGrant struct {
	Token Token
}

// Parameters implements Grant.
func (g AccessTokenGrant) Parameters() map[string]string {
	return RefreshGrant{RefreshToken: g.Token.AccessToken}.Parameters()
}

func (AccessTokenGrant) grant() {}

// ExtensionGrant is an extension grant identified by an absolute URI.
type ExtensionGrant struct {
	GrantType string
	Params    map[string]string
}

// Parameters implements Grant. grant_type always wins over a caller-supplied key of the same name.
func (g ExtensionGrant) Parameters() map[string]string {
	params := make(map[string]string, len(g.Params)+1)
	for k, v := range g.Params {
		params[k] = v
	}
	params["grant_type"] = g.GrantType
	return params
}

func (ExtensionGrant) grant() {}

// EncodeGrant maps grant to token endpoint form parameters and applies client
// authentication. The returned header is the Authorization value to send, or ""
// when the client does not authenticate with HTTP Basic.
func EncodeGrant(grant Grant, creds *Credentials) (url.Values, string) {
	params := grant.Parameters()

	var header string
	if creds != nil {
		if creds.Secret != "" {
			header = creds.BasicAuthorization()
		} else {
			params["client_id"] = creds.ID
		}
	}

	form := make(url.Values, len(params))
	for k, v := range params {
		form.Set(k, v)
	}
	return form, header
}

// NewTokenRequest builds the POST request that exchanges grant at tokenURL.
func NewTokenRequest(ctx context.Context, tokenURL string, grant Grant, creds *Credentials) (*http.Request, error) {
	form, authHeader := EncodeGrant(grant, creds)
	body := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("authsession: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req, nil
}
