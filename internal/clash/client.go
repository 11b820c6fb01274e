// Package clash talks to the routing daemon's external controller API.
package clash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/switchboard/internal/utils"
	"github.com/MrSnakeDoc/switchboard/internal/version"
)

const (
	// DefaultTestURL is the latency probe target used when none is configured.
	DefaultTestURL = "http://www.gstatic.com/generate_204"

	// delayGrace is added on top of the probe timeout so the daemon, not the
	// HTTP client, decides that a probe timed out.
	delayGrace = time.Second
)

var (
	// ErrTimeout means the daemon could not reach the target through the node in time.
	ErrTimeout = errors.New("clash: delay test timed out")
	// ErrStatus is matched by every *StatusError.
	ErrStatus = errors.New("clash: unexpected status")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Client is a thin HTTP + websocket client for the daemon controller.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	delay   *http.Client
	dialer  *websocket.Dialer
}

// NewClient creates a client for baseURL (e.g. http://127.0.0.1:9090).
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http: &http.Client{
			Timeout: timeout,
		},
		// no client-wide timeout: each delay test carries its own deadline,
		// which may exceed the REST timeout
		delay: &http.Client{},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}
}

// Proxies fetches every proxy and group, in the order the daemon sent them.
func (c *Client) Proxies(ctx context.Context) ([]ProxyInfo, error) {
	res, err := c.do(ctx, http.MethodGet, "/proxies", nil)
	if err != nil {
		return nil, err
	}
	defer utils.Close(res.Body)

	proxies, err := decodeProxies(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode proxies: %w", err)
	}
	return proxies, nil
}

// SelectProxy points a Selector group at name.
func (c *Client) SelectProxy(ctx context.Context, group, name string) error {
	return c.sendJSON(ctx, http.MethodPut, "/proxies/"+url.PathEscape(group), map[string]string{"name": name}, nil)
}

// ProxyDelay asks the daemon to measure the latency of name against testURL.
// A zero or missing delay and daemon-side timeouts are reported as ErrTimeout.
func (c *Client) ProxyDelay(ctx context.Context, name, testURL string, timeout time.Duration) (int, error) {
	if testURL == "" {
		testURL = DefaultTestURL
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+delayGrace)
	defer cancel()

	q := url.Values{}
	q.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	q.Set("url", testURL)
	path := "/proxies/" + url.PathEscape(name) + "/delay?" + q.Encode()

	var resp DelayResponse
	err := c.getJSONWith(ctx, c.delay, path, &resp)
	if err != nil {
		var se *StatusError
		switch {
		case errors.As(err, &se) && (se.Code == http.StatusGatewayTimeout || se.Code == http.StatusRequestTimeout):
			return 0, fmt.Errorf("%w: %s", ErrTimeout, se.Message)
		case errors.Is(err, context.DeadlineExceeded):
			return 0, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return 0, err
	}
	if resp.Delay <= 0 {
		return 0, ErrTimeout
	}
	return resp.Delay, nil
}

// Configs fetches the running configuration.
func (c *Client) Configs(ctx context.Context) (Configs, error) {
	var cfg Configs
	if err := c.getJSON(ctx, "/configs", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PatchConfigs applies a partial configuration change.
func (c *Client) PatchConfigs(ctx context.Context, patch ConfigPatch) error {
	return c.sendJSON(ctx, http.MethodPatch, "/configs", patch, nil)
}

// Connections lists the tracked connections.
func (c *Client) Connections(ctx context.Context) (ConnectionsResponse, error) {
	var resp ConnectionsResponse
	if err := c.getJSON(ctx, "/connections", &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// CloseConnection closes one tracked connection.
func (c *Client) CloseConnection(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/connections/"+url.PathEscape(id), nil, nil)
}

// Rules lists the routing rules.
func (c *Client) Rules(ctx context.Context) ([]Rule, error) {
	var resp rulesResponse
	if err := c.getJSON(ctx, "/rules", &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

// Version reports the daemon build.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var v VersionInfo
	if err := c.getJSON(ctx, "/version", &v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.getJSONWith(ctx, c.http, path, out)
}

func (c *Client) getJSONWith(ctx context.Context, hc *http.Client, path string, out any) error {
	res, err := c.doWith(ctx, hc, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer utils.Close(res.Body)

	return json.NewDecoder(res.Body).Decode(out)
}

// sendJSON issues a request with an optional JSON body. Empty responses
// (204 and friends) are fine when out is nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	res, err := c.do(ctx, method, path, reader)
	if err != nil {
		return err
	}
	defer utils.Close(res.Body)

	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// do sends the request and turns non-2xx responses into *StatusError.
// On success the caller owns res.Body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.doWith(ctx, c.http, method, path, body)
}

func (c *Client) doWith(ctx context.Context, hc *http.Client, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req.Header)

	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer utils.Close(res.Body)
		return nil, statusError(res)
	}
	return res, nil
}

func (c *Client) authorize(h http.Header) {
	h.Set("User-Agent", version.UserAgent())
	if c.secret != "" {
		h.Set("Authorization", "Bearer "+c.secret)
	}
}

func statusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	msg := strings.TrimSpace(string(raw))

	// the daemon wraps errors as {"message": "..."}
	var wrapped struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Message != "" {
		msg = wrapped.Message
	}
	return &StatusError{Code: res.StatusCode, Status: res.Status, Message: msg}
}
