package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// RegisterClient performs dynamic client registration against baseURL.
func RegisterClient(ctx context.Context, httpClient *http.Client, baseURL string, req RegistrationRequest) (*RegistrationResponse, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(req); err != nil {
		return nil, fmt.Errorf("encoding registration: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/register"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("registration returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out RegistrationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding registration: %w", err)
	}
	return &out, nil
}

// ClientCredentialsConfig builds the client_credentials config for a
// registered client.
func ClientCredentialsConfig(baseURL string, reg *RegistrationResponse) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		TokenURL:     strings.TrimRight(baseURL, "/") + "/oauth/token",
		Scopes:       []string{Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

// NewAuthorizedClient registers a client and returns an HTTP client that
// attaches a client_credentials bearer token to every request.
func NewAuthorizedClient(ctx context.Context, baseURL, clientName string) (*http.Client, error) {
	reg, err := RegisterClient(ctx, nil, baseURL, RegistrationRequest{
		ClientName: clientName,
		GrantTypes: []string{GrantClientCredentials},
	})
	if err != nil {
		return nil, err
	}
	return ClientCredentialsConfig(baseURL, reg).Client(ctx), nil
}
