package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/basetips/adapters/chain"
	"github.com/layer-3/basetips/adapters/challenge"
	"github.com/layer-3/basetips/adapters/cookie"
	"github.com/layer-3/basetips/adapters/qr"
	"github.com/layer-3/basetips/adapters/store"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/internal/metrics"
	"github.com/layer-3/basetips/service"
	"github.com/layer-3/basetips/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "0123456789abcdef0123456789abcdef-test"

type nopPublisher struct{}

func (nopPublisher) PublishLogin(ctx context.Context, address string, chainID int) error { return nil }
func (nopPublisher) PublishLogout(ctx context.Context, address string) error             { return nil }

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions, err := cookie.NewStore(cookie.Options{Password: testPassword})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	logger := zerolog.Nop()

	auth := service.NewAuthService(challenge.NewVerifier(), store.NewMemoryStore(), nopPublisher{},
		service.AuthConfig{ConsumedNonceTTL: sessions.MaxAge()}, logger, m)
	dashboard := service.NewDashboardService(nil, qr.NewEncoder(), func(address string) []core.Tip {
		return chain.MockTips(time.Now(), address, decimal.NewFromInt(2400))
	}, logger)

	router := SetupRouter(RouterConfig{
		Auth:      auth,
		Dashboard: dashboard,
		Sessions:  sessions,
		Logger:    logger,
		Metrics:   m,
		Gatherer:  registry,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *testClient {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, server: server, client: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path string, body string) (int, []byte) {
	c.t.Helper()

	req, err := http.NewRequest(method, c.server.URL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, data
}

func (c *testClient) nonce() string {
	c.t.Helper()

	status, body := c.do(http.MethodGet, "/auth/nonce", "")
	require.Equal(c.t, http.StatusOK, status)

	var resp struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(c.t, json.Unmarshal(body, &resp))
	require.NotEmpty(c.t, resp.Nonce)
	return resp.Nonce
}

func (c *testClient) verify(message, signature string) (int, map[string]any) {
	c.t.Helper()

	payload, err := json.Marshal(map[string]string{"message": message, "signature": signature})
	require.NoError(c.t, err)

	status, body := c.do(http.MethodPost, "/auth/verify", string(payload))
	var resp map[string]any
	require.NoError(c.t, json.Unmarshal(body, &resp))
	return status, resp
}

func (c *testClient) me() map[string]any {
	c.t.Helper()

	status, body := c.do(http.MethodGet, "/auth/me", "")
	require.Equal(c.t, http.StatusOK, status)

	var resp map[string]any
	require.NoError(c.t, json.Unmarshal(body, &resp))
	return resp
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func signChallenge(t *testing.T, w *wallet.KeyWallet, nonce string) (string, string) {
	t.Helper()

	message, err := challenge.Build(core.ChallengeParams{
		Domain:    "basetips.app",
		Address:   w.Address().Hex(),
		Statement: "Sign in with Ethereum to basetips",
		URI:       "https://basetips.app",
		Version:   "1",
		ChainID:   8453,
		Nonce:     nonce,
	})
	require.NoError(t, err)

	sig, err := wallet.Sign(wallet.Key(w), message)
	require.NoError(t, err)
	return message, sig
}

func signIn(t *testing.T, c *testClient, w *wallet.KeyWallet) {
	t.Helper()

	message, sig := signChallenge(t, w, c.nonce())
	status, resp := c.verify(message, sig)
	require.Equal(t, http.StatusOK, status, "response: %v", resp)
}

func TestSignInScenario(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"address": nil, "chainId": nil}, c.me())

	message, sig := signChallenge(t, w, c.nonce())
	status, resp := c.verify(message, sig)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, w.Address().Hex(), resp["address"])
	assert.Equal(t, float64(8453), resp["chainId"])
	assert.NotContains(t, resp, "error")

	assert.Equal(t, map[string]any{"address": w.Address().Hex(), "chainId": float64(8453)}, c.me())
}

func TestVerifyWrongNonce(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)

	c.nonce()
	message, sig := signChallenge(t, w, "wrong999")
	status, resp := c.verify(message, sig)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"ok": false, "error": "Invalid SIWE"}, resp)
	assert.Nil(t, c.me()["address"])
}

func TestVerifyReplay(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)

	nonce := c.nonce()
	message, sig := signChallenge(t, w, nonce)

	// Keep the pre-verification cookie around
	u := mustURL(t, server.URL)
	preVerify := c.client.Jar.Cookies(u)

	status, _ := c.verify(message, sig)
	require.Equal(t, http.StatusOK, status)

	status, resp := c.verify(message, sig)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid SIWE", resp["error"])

	// A second client replaying the old cookie is refused too
	replayer := newTestClient(t, server)
	replayer.client.Jar.SetCookies(u, preVerify)
	status, _ = replayer.verify(message, sig)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Nil(t, replayer.me()["address"])
}

func TestVerifyBadRequest(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	c.nonce()

	for _, body := range []string{"{not json", `{"message":"hi"}`, ""} {
		status, data := c.do(http.MethodPost, "/auth/verify", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.JSONEq(t, `{"ok":false,"error":"Invalid SIWE"}`, string(data), body)
	}
}

func TestVerifyWithoutNonce(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)

	message, sig := signChallenge(t, w, "abc123def456")
	status, resp := c.verify(message, sig)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, resp["ok"])
}

func TestLogout(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)

	signIn(t, c, w)
	require.Equal(t, w.Address().Hex(), c.me()["address"])

	status, body := c.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	assert.Equal(t, map[string]any{"address": nil, "chainId": nil}, c.me())

	// Logging out again is fine
	status, _ = c.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestTamperedCookieReadsAnonymous(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: cookie.DefaultName, Value: "forged"})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":null,"chainId":null}`, string(data))
}

func TestDashboardRequiresSession(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)

	for _, path := range []string{"/api/tips", "/api/qr"} {
		status, body := c.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.JSONEq(t, `{"error":"Not signed in"}`, string(body))
	}
}

func TestDashboard(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)
	signIn(t, c, w)

	status, body := c.do(http.MethodGet, "/api/tips?limit=2", "")
	require.Equal(t, http.StatusOK, status)

	var tips struct {
		Tips []core.Tip `json:"tips"`
		Mock bool       `json:"mock"`
	}
	require.NoError(t, json.Unmarshal(body, &tips))
	assert.True(t, tips.Mock)
	require.Len(t, tips.Tips, 2)
	assert.Equal(t, w.Address().Hex(), tips.Tips[0].To)

	status, body = c.do(http.MethodGet, "/api/qr?size=256", "")
	require.Equal(t, http.StatusOK, status)
	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestPublicQR(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)

	status, body := c.do(http.MethodGet, "/api/qr/0x742D35Cc6634c0532925a3B8d0Cd1c62C3b86eB4", "")
	require.Equal(t, http.StatusOK, status)
	_, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)

	status, body = c.do(http.MethodGet, "/api/qr/not-an-address", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Invalid address"}`, string(body))
}

func TestQRDataURL(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)
	signIn(t, c, w)

	status, body := c.do(http.MethodGet, "/api/qr?format=dataurl&size=200", "")
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		DataURL string `json:"dataUrl"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, strings.HasPrefix(resp.DataURL, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(resp.DataURL, "data:image/png;base64,"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	status, body = c.do(http.MethodGet, "/api/qr/not-an-address?format=dataurl", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"error":"Invalid address"}`, string(body))
}

func TestVerifyBodyTooLarge(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)
	w, err := wallet.Generate()
	require.NoError(t, err)

	message, sig := signChallenge(t, w, c.nonce())
	payload, err := json.Marshal(map[string]string{
		"message":   message,
		"signature": sig,
		"padding":   strings.Repeat("a", maxVerifyBody),
	})
	require.NoError(t, err)

	status, data := c.do(http.MethodPost, "/auth/verify", string(payload))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"ok":false,"error":"Invalid SIWE"}`, string(data))
	assert.Nil(t, c.me()["address"])

	// The same signed message within the limit still verifies
	status, resp := c.verify(message, sig)
	assert.Equal(t, http.StatusOK, status, "response: %v", resp)
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(t)
	c := newTestClient(t, server)

	status, body := c.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	c.nonce()

	status, body = c.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `basetips_http_requests_total{method="GET",route="/auth/nonce",status="200"} 1`)
	assert.Contains(t, string(body), `basetips_auth_attempts_total{operation="nonce",outcome="ok"} 1`)
}

func TestRequestID(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
}
