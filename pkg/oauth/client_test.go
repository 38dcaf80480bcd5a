package oauth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBootstrapServer(t *testing.T) *httptest.Server {
	t.Helper()
	e := echo.New()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	NewHandler(srv.URL, "/mcp").Register(e)
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Request().Header.Get(echo.HeaderAuthorization))
	})
	return srv
}

func TestRegisterClient(t *testing.T) {
	srv := newBootstrapServer(t)

	reg, err := RegisterClient(context.Background(), srv.Client(), srv.URL, RegistrationRequest{ClientName: "cli"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ClientID)
	assert.NotEmpty(t, reg.ClientSecret)
	assert.Equal(t, "mcp", reg.Scope)

	cfg := ClientCredentialsConfig(srv.URL+"/", reg)
	assert.Equal(t, srv.URL+"/oauth/token", cfg.TokenURL)
	assert.Equal(t, []string{"mcp"}, cfg.Scopes)
}

func TestRegisterClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := RegisterClient(context.Background(), srv.Client(), srv.URL, RegistrationRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewAuthorizedClient(t *testing.T) {
	srv := newBootstrapServer(t)

	client, err := NewAuthorizedClient(context.Background(), srv.URL, "cli")
	require.NoError(t, err)

	resp, err := client.Get(srv.URL + "/whoami")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^Bearer [0-9a-f]{64}$`), string(body))
}
