package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"slices"
	"strings"
	"time"

	"github.com/layer-3/basetips/core"
	"golang.org/x/net/publicsuffix"
)

// API talks to the basetips auth endpoints. The session cookie lives in
// the client's cookie jar.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates an API client for baseURL. A nil httpClient gets a
// default one with its own cookie jar.
func NewAPI(baseURL string, httpClient *http.Client) (*API, error) {
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	if httpClient.Jar == nil {
		return nil, fmt.Errorf("http client needs a cookie jar to keep the session")
	}

	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// Nonce asks the server for a fresh nonce
func (a *API) Nonce(ctx context.Context) (string, error) {
	var resp struct {
		Nonce string `json:"nonce"`
	}
	if err := a.do(ctx, http.MethodGet, "/auth/nonce", nil, &resp, http.StatusOK); err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", fmt.Errorf("%w: empty nonce", core.ErrTransport)
	}
	return resp.Nonce, nil
}

// Verify submits a signed challenge. A rejection is a result, not an error.
func (a *API) Verify(ctx context.Context, message, signature string) (core.VerifyResult, error) {
	body := map[string]string{"message": message, "signature": signature}

	var result core.VerifyResult
	if err := a.do(ctx, http.MethodPost, "/auth/verify", body, &result, http.StatusOK, http.StatusBadRequest); err != nil {
		return core.VerifyResult{}, err
	}
	if result.OK && result.Address == "" {
		return core.VerifyResult{}, fmt.Errorf("%w: verification accepted without an address", core.ErrTransport)
	}
	return result, nil
}

// Me returns the identity of the current session, or nil when anonymous
func (a *API) Me(ctx context.Context) (*core.Identity, error) {
	var resp struct {
		Address *string `json:"address"`
		ChainID *int    `json:"chainId"`
	}
	if err := a.do(ctx, http.MethodGet, "/auth/me", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	if resp.Address == nil {
		return nil, nil
	}

	identity := &core.Identity{Address: *resp.Address}
	if resp.ChainID != nil {
		identity.ChainID = *resp.ChainID
	}
	return identity, nil
}

// Logout clears the server session
func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", nil, nil, http.StatusOK)
}

func (a *API) do(ctx context.Context, method, path string, in, out any, accept ...int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", core.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if !slices.Contains(accept, resp.StatusCode) {
		return fmt.Errorf("%w: %s %s: unexpected status %d", core.ErrTransport, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", core.ErrTransport, path, err)
	}
	return nil
}
