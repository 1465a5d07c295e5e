// Package toolclient is the session host's client for the tool service.
//
// It performs the credential handshake once per cold connection, attaches
// the bearer token to every call and renews it transparently when the
// service reports expiry. A call that hits a stale token is retried
// exactly once with the fresh token.
package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/user/wattwise/internal/types"
)

// ErrInvalidCredentials means the handshake itself was rejected. This is
// fatal for the connection; the client stops retrying until reconfigured.
var ErrInvalidCredentials = errors.New("tool service rejected credentials")

var _ types.ToolExecutor = (*Client)(nil)

// Config locates and authenticates against the tool service.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// Timeout bounds each HTTP call. Zero means 30s.
	Timeout time.Duration
}

// Client talks to the tool service over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	retry  retryPolicy

	mu       sync.RWMutex
	token    string
	badCreds bool

	refresh singleflight.Group

	declMu sync.Mutex
	decls  []types.Declaration
}

func New(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With("component", "toolclient"),
		retry:  retryPolicy{attempts: 3, backoff: 200 * time.Millisecond},
	}
}

// Connect performs the cold handshake. Invalid credentials are fatal.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.refreshToken(ctx, "")
	return err
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// refreshToken renews the bearer token. The singleflight group collapses
// concurrent renewals; callers whose stale token was already replaced get
// the fresh one without a second handshake.
func (c *Client) refreshToken(ctx context.Context, stale string) (string, error) {
	c.mu.RLock()
	bad := c.badCreds
	current := c.token
	c.mu.RUnlock()
	if bad {
		return "", ErrInvalidCredentials
	}
	if current != "" && current != stale {
		return current, nil
	}

	tok, err, _ := c.refresh.Do("token", func() (any, error) {
		if cur := c.currentToken(); cur != "" && cur != stale {
			return cur, nil
		}
		token, err := c.handshake(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return tok.(string), nil
}

func (c *Client) handshake(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("encode handshake: %w", err)
	}

	var token string
	err = c.retry.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/auth", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("handshake request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			// Fatal for the connection: the same pair will never be
			// accepted, so re-sending it is pointless.
			c.mu.Lock()
			c.badCreds = true
			c.mu.Unlock()
			return permanent(ErrInvalidCredentials)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("handshake status %d", resp.StatusCode)
		}
		var out struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode handshake: %w", err)
		}
		token = out.Token
		return nil
	})
	if err != nil {
		return "", err
	}
	c.logger.Info("authenticated with tool service")
	return token, nil
}

// Declarations fetches the remote tool signatures. Only a successful
// fetch is cached; a failure is retried on the next call so one startup
// hiccup does not leave the host toolless for its whole lifetime.
func (c *Client) Declarations(ctx context.Context) ([]types.Declaration, error) {
	c.declMu.Lock()
	defer c.declMu.Unlock()
	if c.decls != nil {
		return c.decls, nil
	}
	decls, err := c.fetchDeclarations(ctx)
	if err != nil {
		return nil, err
	}
	c.decls = decls
	return decls, nil
}

func (c *Client) fetchDeclarations(ctx context.Context) ([]types.Declaration, error) {
	var out struct {
		Tools []types.Declaration `json:"tools"`
	}
	status, body, err := c.authedCall(ctx, http.MethodGet, "/tools", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list tools status %d", status)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	return out.Tools, nil
}

// Execute dispatches one tool call. Transport and auth problems come back
// as provider_unavailable results, never as Go errors, so one flaky call
// cannot abort a turn.
func (c *Client) Execute(ctx context.Context, call types.ToolCall) types.ToolResult {
	body, err := json.Marshal(map[string]any{
		"tool":      call.Name,
		"arguments": call.Arguments,
		"seq":       call.Seq,
		"id":        call.ID,
	})
	if err != nil {
		return types.FailedResult(call, types.ErrProviderUnavailable, fmt.Sprintf("encode call: %v", err))
	}

	status, respBody, err := c.authedCall(ctx, http.MethodPost, "/api/tool", body)
	if err != nil {
		return types.FailedResult(call, types.ErrProviderUnavailable, err.Error())
	}
	if status != http.StatusOK {
		return types.FailedResult(call, types.ErrProviderUnavailable, fmt.Sprintf("tool service status %d", status))
	}

	var result types.ToolResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return types.FailedResult(call, types.ErrProviderUnavailable, fmt.Sprintf("decode result: %v", err))
	}
	return result
}

// authedCall sends an authenticated request, renewing the token and
// retrying exactly once if the service reports it expired.
func (c *Client) authedCall(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	token, err := c.refreshToken(ctx, "")
	if err != nil {
		return 0, nil, err
	}

	status, respBody, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusUnauthorized && isTokenExpired(respBody) {
		c.logger.Info("token expired, renewing")
		fresh, err := c.refreshToken(ctx, token)
		if err != nil {
			return 0, nil, err
		}
		return c.send(ctx, method, path, body, fresh)
	}
	return status, respBody, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) (int, []byte, error) {
	var status int
	var respBody []byte
	err := c.retry.do(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("tool service request: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		status = resp.StatusCode
		respBody = data
		return nil
	})
	return status, respBody, err
}

func isTokenExpired(body []byte) bool {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false
	}
	return out.Error == "token_expired"
}

// FetchArtifact retrieves artifact content by its canonical path, for the
// session host to serve without owning the store.
func (c *Client) FetchArtifact(ctx context.Context, path string) ([]byte, error) {
	var content []byte
	err := c.retry.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch artifact: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			content = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("artifact status %d", resp.StatusCode)
		}
		content, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("artifact not found: %s", path)
	}
	return content, nil
}
