package atlasclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/sumologic/mongodbatlas-collector/common"
)

// Client talks to the MongoDB Atlas Admin API over Digest Authentication,
// retrying transient failures. One Client is meant to be owned by a single
// worker goroutine, mirroring SessionPool's one-session-per-thread model.
type Client struct {
	http     *http.Client
	auth     digestAuth
	retry    RetryConfig
	baseURL  string
	nonceSeq int
}

// New builds a Client for baseURL, authenticating with publicKey/privateKey.
func New(baseURL, publicKey, privateKey string, retry RetryConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: retry.Timeout},
		auth:    digestAuth{username: publicKey, password: privateKey},
		retry:   retry,
		baseURL: baseURL,
	}
}

// Get issues a GET request to path (resolved against baseURL) with the
// given query parameters and decodes a JSON response into out. A nil out
// discards the body after a successful status check.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	body, _, err := c.do(ctx, http.MethodGet, path, params, nil, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("atlasclient: decoding response from %s: %w", path, err)
	}
	return nil
}

// GetBytes issues a GET request with Accept: application/json and returns
// the raw, undecoded response body. Log downloads, which return gzip data,
// go through GetBytesAccept instead.
func (c *Client) GetBytes(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, params, nil, "application/json")
	return body, err
}

// GetBytesAccept is GetBytes with an overridden Accept header. Called by
// stream.RunSingleFetch for any SingleFetchAdapter that opts in to a
// non-default Accept header (adapters.Log requests "application/gzip" the
// way LogAPI.build_fetch_params does).
func (c *Client) GetBytesAccept(ctx context.Context, path string, params url.Values, accept string) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, params, nil, accept)
	return body, err
}

// do performs method against path, transparently handling the digest
// challenge/response handshake and retrying on transient failures.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, reqBody []byte, accept string) ([]byte, *http.Response, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	challenge, haveChallenge := digestChallenge{}, false

	newReq := func(ctx context.Context) (*http.Request, error) {
		var bodyReader *bytes.Reader
		if reqBody != nil {
			bodyReader = bytes.NewReader(reqBody)
		} else {
			bodyReader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		if haveChallenge {
			c.nonceSeq++
			u, _ := url.Parse(fullURL)
			uri := u.RequestURI()
			req.Header.Set("Authorization", c.auth.authorize(method, uri, challenge, c.nonceSeq))
		}
		return req, nil
	}

	resp, body, err := doWithRetry(ctx, c.http, c.retry, newReq)

	if resp != nil && is401(resp) && !haveChallenge {
		if ch, ok := parseChallenge(resp.Header.Get("WWW-Authenticate")); ok {
			challenge = ch
			haveChallenge = true
			resp, body, err = doWithRetry(ctx, c.http, c.retry, newReq)
		}
	}

	if err != nil {
		return nil, nil, fmt.Errorf("atlasclient: %s %s: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !haveChallenge {
		// No WWW-Authenticate challenge offered; credentials are simply wrong.
		return nil, resp, fmt.Errorf("atlasclient: %s %s: unauthorized", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		common.Logger.WithFields(map[string]any{
			"method": method, "path": path, "status": resp.StatusCode,
		}).Error("atlasclient: request failed")
		return body, resp, fmt.Errorf("atlasclient: %s %s: status %d", method, path, resp.StatusCode)
	}

	return body, resp, nil
}

// SessionPool hands out one *Client per caller identity (typically a
// worker id), mirroring the Python reference's thread-keyed SessionPool
// so concurrent workers never share a connection/digest-nonce state.
type SessionPool struct {
	mu      sync.Mutex
	clients map[string]*Client

	baseURL    string
	publicKey  string
	privateKey string
	retry      RetryConfig
}

// NewSessionPool builds a pool that lazily constructs one Client per key.
func NewSessionPool(baseURL, publicKey, privateKey string, retry RetryConfig) *SessionPool {
	return &SessionPool{
		clients:    make(map[string]*Client),
		baseURL:    baseURL,
		publicKey:  publicKey,
		privateKey: privateKey,
		retry:      retry,
	}
}

// Get returns the Client for key, creating one on first use.
func (p *SessionPool) Get(key string) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}
	c := New(p.baseURL, p.publicKey, p.privateKey, p.retry)
	p.clients[key] = c
	return c
}

// CloseAll is a no-op placeholder kept for symmetry with the Python
// SessionPool.closeall; Go's http.Client needs no explicit close, but
// callers may still want to drop references to let idle connections be
// reaped.
func (p *SessionPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.clients {
		delete(p.clients, k)
	}
}
