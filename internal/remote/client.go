package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// TokenSource supplies the bearer token for authenticated calls. It
// returns ErrNotAuthenticated when no usable token exists, which aborts
// the call before any network IO.
type TokenSource interface {
	Token() (string, error)
}

// Config holds the remote authority connection settings.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Client is the thin authoritative REST client. One method per
// endpoint, no caching, no retries. The coordination layers above own
// those concerns; transport-level timeouts are owned here.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  TokenSource
}

// NewClient creates a client for the given authority.
func NewClient(cfg Config, tokens TokenSource) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
	}
}

// apiEnvelope matches the authority's JSON envelope.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do issues one request and decodes the envelope's data field into out
// (out may be nil for calls whose payload is ignored).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		var env apiEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			se.Reason = env.Error.Code
			se.Message = env.Error.Message
		}
		pkglog.Ctx(ctx).Debug().
			Int(pkglog.FieldStatus, resp.StatusCode).
			Str(pkglog.FieldPath, path).
			Msg("remote authority rejected request")
		return se
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformed, method, path, err)
	}
	if env.Data == nil {
		return fmt.Errorf("%w: %s %s: missing data", ErrMalformed, method, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformed, method, path, err)
	}
	return nil
}
