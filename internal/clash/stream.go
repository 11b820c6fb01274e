package clash

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Streaming endpoints exposed by the daemon.
const (
	PathTraffic = "/traffic"
	PathMemory  = "/memory"
	PathLogs    = "/logs"
)

// Dial opens a websocket to one of the streaming endpoints. The secret is
// sent both as a bearer header and as the token query parameter, since some
// daemon builds only read the latter on upgrade.
func (c *Client) Dial(ctx context.Context, path string, query url.Values) (*websocket.Conn, error) {
	u, err := c.streamURL(path, query)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	c.authorize(h)

	conn, res, err := c.dialer.DialContext(ctx, u, h)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", path, err, res.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}

// DialLogs opens the log stream at the given minimum level.
func (c *Client) DialLogs(ctx context.Context, level string) (*websocket.Conn, error) {
	if level == "" {
		level = "info"
	}
	return c.Dial(ctx, PathLogs, url.Values{"level": {level}})
}

func (c *Client) streamURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.secret != "" {
		q.Set("token", c.secret)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
