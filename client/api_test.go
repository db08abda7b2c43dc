package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/layer-3/basetips/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIUnexpectedResponses(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/nonce":
			w.WriteHeader(http.StatusInternalServerError)
		case "/auth/verify":
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/auth/me":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	api, err := NewAPI(server.URL+"/", nil)
	require.NoError(t, err)

	_, err = api.Nonce(ctx)
	assert.ErrorIs(t, err, core.ErrTransport)

	_, err = api.Verify(ctx, "message", "0x")
	assert.ErrorIs(t, err, core.ErrTransport, "accepted result without an address")

	_, err = api.Me(ctx)
	assert.ErrorIs(t, err, core.ErrTransport)

	assert.ErrorIs(t, api.Logout(ctx), core.ErrTransport)
}

func TestAPIVerifyRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error":"Invalid SIWE"}`))
	}))
	defer server.Close()

	api, err := NewAPI(server.URL, nil)
	require.NoError(t, err)

	result, err := api.Verify(context.Background(), "message", "0x")
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, "Invalid SIWE", result.Error)
}

func TestNewAPIRequiresJar(t *testing.T) {
	_, err := NewAPI("http://localhost", &http.Client{})
	assert.Error(t, err)
}
