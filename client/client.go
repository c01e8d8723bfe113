// Package client provides access to the HTTP discovery endpoints of a
// browser's remote debugging server.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
)

const (
	// DefaultEndpoint is the default endpoint to connect to.
	DefaultEndpoint = "http://localhost:9222/json"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second
)

// Error is a client error.
type Error string

// Error satisfies the error interface.
func (err Error) Error() string {
	return string(err)
}

// ErrUnexpectedStatus is returned when the endpoint answers with a non-200
// status.
const ErrUnexpectedStatus Error = "unexpected status"

// Version is the browser version information reported by /json/version.
type Version struct {
	Browser              string
	ProtocolVersion      string
	UserAgent            string
	WebSocketDebuggerURL string
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (v *Version) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "Browser":
			v.Browser = in.String()
		case "Protocol-Version":
			v.ProtocolVersion = in.String()
		case "User-Agent":
			v.UserAgent = in.String()
		case "webSocketDebuggerUrl":
			v.WebSocketDebuggerURL = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (v *Version) UnmarshalJSON(buf []byte) error {
	return easyjson.Unmarshal(buf, v)
}

// Client is a client for the debugging server's HTTP endpoints.
type Client struct {
	url     string
	timeout time.Duration
	hc      *http.Client
}

// New creates a new client.
func New(opts ...Option) *Client {
	c := &Client{
		url:     DefaultEndpoint,
		timeout: DefaultTimeout,
	}

	// apply opts
	for _, o := range opts {
		o(c)
	}

	if c.hc == nil {
		c.hc = &http.Client{Timeout: c.timeout}
	}
	return c
}

// doReq executes a request.
func (c *Client) doReq(ctx context.Context, action string, v easyjson.Unmarshaler) error {
	// create request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/"+action, nil)
	if err != nil {
		return err
	}

	// execute
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w %d", action, ErrUnexpectedStatus, res.StatusCode)
	}

	// load body
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	// unmarshal
	return easyjson.Unmarshal(body, v)
}

// VersionInfo returns information about the browser and its debugging
// protocol.
func (c *Client) VersionInfo(ctx context.Context) (*Version, error) {
	v := new(Version)
	if err := c.doReq(ctx, "version", v); err != nil {
		return nil, err
	}
	return v, nil
}

// Option is a client option.
type Option func(*Client)

// URL is a client option to specify the remote debugging server to connect
// to.
func URL(urlstr string) Option {
	return func(c *Client) {
		// since chrome 66+, dev tools requires the host name to be either an
		// IP address, or "localhost"
		if strings.HasPrefix(strings.ToLower(urlstr), "http://") {
			host, port, path := urlstr[7:], "", ""
			if i := strings.Index(host, "/"); i != -1 {
				host, path = host[:i], host[i:]
			}
			if i := strings.LastIndex(host, ":"); i != -1 {
				host, port = host[:i], host[i:]
			}
			if addr, err := net.ResolveIPAddr("ip4", host); err == nil {
				urlstr = "http://" + addr.IP.String() + port + path
			}
		}
		c.url = strings.TrimSuffix(urlstr, "/")
	}
}

// HostPort is a client option to point at the /json endpoint of host:port.
func HostPort(host string, port int) Option {
	return URL(fmt.Sprintf("http://%s/json", net.JoinHostPort(host, fmt.Sprint(port))))
}

// Timeout is a client option that sets the request timeout.
func Timeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// HTTPClient is a client option to use hc for requests.
func HTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}
