package mcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

func newGatewayServer(t *testing.T) (*httptest.Server, *fakeResolver) {
	t.Helper()
	f := newGatewayFixture(t, Config{})
	srv := httptest.NewServer(f.echo)
	t.Cleanup(srv.Close)
	return srv, f.resolver
}

func TestClient_CallTool(t *testing.T) {
	srv, resolver := newGatewayServer(t)
	c := NewClient(srv.URL+"/mcp", "/home/dev/orc", &http.Client{Transport: bearerTransport{token: "t"}})

	res, err := c.CallTool(context.Background(), "echo", map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "hello from implementer_w1", res.Content[0].Text)
	assert.Equal(t, []string{"/home/dev/orc"}, resolver.seen)
}

func TestClient_ListTools(t *testing.T) {
	srv, _ := newGatewayServer(t)
	c := NewClient(srv.URL+"/mcp", "", &http.Client{Transport: bearerTransport{token: "t"}})

	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "echo", list[0].Name)
}

func TestClient_Errors(t *testing.T) {
	srv, _ := newGatewayServer(t)

	t.Run("unauthenticated", func(t *testing.T) {
		c := NewClient(srv.URL+"/mcp", "", nil)
		_, err := c.ListTools(context.Background())
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, http.StatusUnauthorized, rpcErr.Status)
		assert.Equal(t, AuthRequired, rpcErr.Detail.Code)
	})

	t.Run("unknown tool", func(t *testing.T) {
		c := NewClient(srv.URL+"/mcp", "", &http.Client{Transport: bearerTransport{token: "t"}})
		_, err := c.CallTool(context.Background(), "nope", nil)
		var rpcErr *RPCError
		require.True(t, errors.As(err, &rpcErr))
		assert.Equal(t, InvalidParams, rpcErr.Detail.Code)
	})
}
