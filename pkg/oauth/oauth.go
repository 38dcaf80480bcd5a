// Package oauth serves the development identity bootstrap that generic MCP
// clients expect before they call the gateway: discovery documents, dynamic
// client registration, an auto-approving authorize endpoint and a token
// endpoint.
//
// Nothing issued here is stored or verified later. The gateway only checks
// that a bearer credential is present.
package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fyrsmithlabs/orctasks/internal/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Scope is the only scope advertised and granted.
const Scope = "mcp"

// TokenTTLSeconds is the advertised lifetime of issued access tokens.
const TokenTTLSeconds = 3600

// Grant types accepted by the token endpoint.
const (
	GrantClientCredentials = "client_credentials"
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

const defaultRedirectURI = "http://localhost:3000/callback"

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 discovery document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
}

// RegistrationRequest is the body of POST /register.
type RegistrationRequest struct {
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
	ClientName    string   `json:"client_name,omitempty"`
}

// RegistrationResponse is returned by POST /register.
type RegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope"`
}

// TokenRequest carries the token endpoint parameters, form or JSON encoded.
type TokenRequest struct {
	GrantType string `form:"grant_type" json:"grant_type"`
}

// TokenResponse is a successful token endpoint reply.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is an OAuth error reply.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Handler serves the bootstrap endpoints.
type Handler struct {
	baseURL      string
	resourcePath string
	logger       *zap.Logger
	random       io.Reader
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRandom replaces the entropy source used for secrets and tokens.
func WithRandom(r io.Reader) Option {
	return func(h *Handler) { h.random = r }
}

// NewHandler creates a handler advertising baseURL as issuer and
// baseURL+resourcePath as the protected resource.
func NewHandler(baseURL, resourcePath string, opts ...Option) *Handler {
	h := &Handler{
		baseURL:      strings.TrimRight(baseURL, "/"),
		resourcePath: "/" + strings.Trim(resourcePath, "/"),
		logger:       zap.NewNop(),
		random:       rand.Reader,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the endpoints on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/.well-known/oauth-authorization-server", h.handleAuthorizationServer)
	e.GET("/.well-known/oauth-authorization-server"+h.resourcePath, h.handleAuthorizationServer)
	e.GET("/.well-known/oauth-protected-resource", h.handleProtectedResource)
	e.POST("/register", h.handleRegister)
	e.GET("/oauth/authorize", h.handleAuthorize)
	e.POST("/oauth/token", h.handleToken)
}

// Metadata returns the authorization server discovery document.
func (h *Handler) Metadata() AuthorizationServerMetadata {
	return AuthorizationServerMetadata{
		Issuer:                            h.baseURL,
		AuthorizationEndpoint:             h.baseURL + "/oauth/authorize",
		TokenEndpoint:                     h.baseURL + "/oauth/token",
		RegistrationEndpoint:              h.baseURL + "/register",
		GrantTypesSupported:               []string{GrantClientCredentials, GrantAuthorizationCode, GrantRefreshToken},
		TokenEndpointAuthMethodsSupported: []string{"none", "client_secret_basic"},
		ResponseTypesSupported:            []string{"code", "token"},
		ScopesSupported:                   []string{Scope},
		CodeChallengeMethodsSupported:     []string{"S256"},
	}
}

func (h *Handler) handleAuthorizationServer(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Metadata())
}

func (h *Handler) handleProtectedResource(c echo.Context) error {
	return c.JSON(http.StatusOK, ProtectedResourceMetadata{
		Resource:               h.baseURL + h.resourcePath,
		AuthorizationServers:   []string{h.baseURL},
		ScopesSupported:        []string{Scope},
		BearerMethodsSupported: []string{"header"},
	})
}

func (h *Handler) handleRegister(c echo.Context) error {
	var req RegistrationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_client_metadata", ErrorDescription: "registration body must be JSON"})
	}
	secret, err := h.hex(32)
	if err != nil {
		return err
	}
	resp := RegistrationResponse{
		ClientID:                uuid.NewString(),
		ClientSecret:            secret,
		RedirectURIs:            orDefault(req.RedirectURIs, []string{}),
		GrantTypes:              orDefault(req.GrantTypes, []string{GrantClientCredentials}),
		ResponseTypes:           orDefault(req.ResponseTypes, []string{"token"}),
		TokenEndpointAuthMethod: "none",
		Scope:                   Scope,
	}
	h.logger.Info("oauth client registered",
		zap.String("client_id", resp.ClientID),
		zap.String("client_name", req.ClientName),
		zap.Strings("grant_types", resp.GrantTypes))
	return c.JSON(http.StatusOK, resp)
}

// handleAuthorize auto-approves and redirects back with a fresh code.
func (h *Handler) handleAuthorize(c echo.Context) error {
	redirect := c.QueryParam("redirect_uri")
	if redirect == "" {
		redirect = defaultRedirectURI
	}
	u, err := url.Parse(redirect)
	if err != nil || u.Scheme == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", ErrorDescription: "redirect_uri must be an absolute URL"})
	}
	code, err := h.hex(16)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("code", code)
	q.Set("state", c.QueryParam("state"))
	u.RawQuery = q.Encode()
	return c.Redirect(http.StatusFound, u.String())
}

func (h *Handler) handleToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", ErrorDescription: "malformed token request"})
	}

	switch req.GrantType {
	case GrantClientCredentials, GrantAuthorizationCode, GrantRefreshToken:
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:            "unsupported_grant_type",
			ErrorDescription: fmt.Sprintf("Grant type %s is not supported", req.GrantType),
		})
	}

	access, err := h.hex(32)
	if err != nil {
		return err
	}
	resp := TokenResponse{AccessToken: access, TokenType: "Bearer", ExpiresIn: TokenTTLSeconds, Scope: Scope}
	if req.GrantType != GrantClientCredentials {
		if resp.RefreshToken, err = h.hex(32); err != nil {
			return err
		}
	}
	h.logger.Debug("oauth token issued",
		zap.String("grant_type", req.GrantType),
		logging.RedactedString("access_token", access))
	return c.JSON(http.StatusOK, resp)
}

// hex returns n random bytes hex encoded.
func (h *Handler) hex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(h.random, b); err != nil {
		return "", fmt.Errorf("generate random value: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
