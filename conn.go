package bookmarkdp

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
)

var (
	// DefaultReadBufferSize is the default maximum read buffer size.
	DefaultReadBufferSize = 25 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024

	// DefaultHandshakeTimeout bounds the websocket opening handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds writing a single frame.
	DefaultWriteTimeout = 10 * time.Second
)

const (
	// DefaultHost is the default remote debugging host.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the default remote debugging port.
	DefaultPort = 9222

	// DefaultPath is the default websocket path of the debugging endpoint.
	DefaultPath = "/cdp"
)

// Transport is the common interface to send/receive frames to a remote
// browser.
type Transport interface {
	// Read returns the next raw frame.
	Read() ([]byte, error)
	Write(*cdproto.Message) error
	io.Closer
}

// Conn wraps a gorilla/websocket.Conn connection.
type Conn struct {
	*websocket.Conn
}

// Read reads the next frame.
func (c *Conn) Read() ([]byte, error) {
	_, buf, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Write writes a message as a single text frame. A write that does not
// complete within DefaultWriteTimeout fails, and the connection is unusable
// afterwards.
func (c *Conn) Write(msg *cdproto.Message) error {
	buf, err := easyjson.Marshal(msg)
	if err != nil {
		return err
	}
	if err := c.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout)); err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, buf)
}

// DialContext dials the specified websocket URL using gorilla/websocket.
func DialContext(ctx context.Context, urlstr string) (*Conn, error) {
	d := &websocket.Dialer{
		ReadBufferSize:   DefaultReadBufferSize,
		WriteBufferSize:  DefaultWriteBufferSize,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}

	// connect
	conn, res, err := d.DialContext(ctx, urlstr, nil)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return &Conn{conn}, nil
}

// decodeFrame decodes a raw frame, reporting false for frames that are not a
// JSON object or that carry no usable id.
func decodeFrame(buf []byte) (*cdproto.Message, bool) {
	msg := new(cdproto.Message)
	if err := easyjson.Unmarshal(buf, msg); err != nil {
		return nil, false
	}
	if msg.ID == 0 {
		return nil, false
	}
	return msg, true
}

// EndpointURL builds the websocket URL of a debugging endpoint. An empty host
// or path, or a zero port, is replaced by its default.
func EndpointURL(host string, port int, path string) string {
	if host == "" {
		host = DefaultHost
	}
	if port == 0 {
		port = DefaultPort
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, fmt.Sprint(port)), path)
}

// ForceIP forces the host component in urlstr to be an IP address.
//
// Since Chrome 66+, Chrome DevTools Protocol clients connecting to a browser
// must send the "Host:" header as either an IP address, or "localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme := urlstr[:i+3]
		host, port, path := urlstr[len(scheme):], "", ""
		if i := strings.Index(host, "/"); i != -1 {
			host, path = host[:i], host[i:]
		}
		if i := strings.LastIndex(host, ":"); i != -1 {
			host, port = host[:i], host[i:]
		}
		if addr, err := net.ResolveIPAddr("ip", host); err == nil {
			ip := addr.IP.String()
			if addr.IP.To4() == nil {
				ip = "[" + ip + "]"
			}
			urlstr = scheme + ip + port + path
		}
	}
	return urlstr
}
