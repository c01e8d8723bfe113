// Package cdptest provides a scriptable Chrome DevTools Protocol endpoint for
// tests.
package cdptest

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/mailru/easyjson"
)

// Path is the websocket path served by Server.
const Path = "/cdp"

// Response is the scripted answer to a command.
type Response struct {
	// Result is JSON-encoded as the response result.
	Result interface{}

	// Error, when set, is sent instead of Result.
	Error *cdproto.Error

	// Raw, when set, is written verbatim instead of a response frame.
	Raw []byte

	// Delay postpones the response.
	Delay time.Duration

	// NoReply suppresses the response altogether.
	NoReply bool
}

// Handler answers a command.
type Handler func(req *cdproto.Message) Response

// Server is a fake remote browser serving the protocol on Path.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	methods  []string
	conns    map[*serverConn]bool
}

type serverConn struct {
	net.Conn
	wmu sync.Mutex
}

func (c *serverConn) write(buf []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return wsutil.WriteServerMessage(c, ws.OpText, buf)
}

// NewServer starts a server answering the liveness probe and the enable and
// navigate commands. Other commands are answered with a "method not found"
// error until a handler is set.
func NewServer() *Server {
	s := &Server{
		handlers: map[string]Handler{
			"Browser.getVersion": Result(map[string]string{
				"protocolVersion": "1.3",
				"product":         "HeadlessChrome/120.0.0.0",
			}),
			"Page.enable":    Result(struct{}{}),
			"Runtime.enable": Result(struct{}{}),
			"Page.navigate":  Result(map[string]string{"frameId": "F1", "loaderId": "L1"}),
		},
		conns: make(map[*serverConn]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.serveWS)
	s.Server = httptest.NewServer(mux)
	return s
}

// WebsocketURL returns the websocket URL of the endpoint.
func (s *Server) WebsocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + Path
}

// Handle sets the handler for method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Methods returns the methods received so far, in arrival order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

// Count returns how many times method was received.
func (s *Server) Count(method string) int {
	n := 0
	for _, m := range s.Methods() {
		if m == method {
			n++
		}
	}
	return n
}

// Broadcast writes a raw frame to every connected client.
func (s *Server) Broadcast(buf []byte) {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.write(buf)
	}
}

// DropConnections closes every client connection without a close handshake.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
		delete(s.conns, c)
	}
}

// Close drops the client connections and shuts down the server.
func (s *Server) Close() {
	s.DropConnections()
	s.Server.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	nc, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	c := &serverConn{Conn: nc}
	s.mu.Lock()
	s.conns[c] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.Close()
	}()

	for {
		buf, _, err := wsutil.ReadClientData(c)
		if err != nil {
			return
		}
		req := new(cdproto.Message)
		if err := easyjson.Unmarshal(buf, req); err != nil {
			continue
		}

		method := string(req.Method)
		s.mu.Lock()
		s.methods = append(s.methods, method)
		h, ok := s.handlers[method]
		s.mu.Unlock()
		if !ok {
			h = Error(-32601, "'"+method+"' wasn't found")
		}

		res := h(req)
		if res.NoReply {
			continue
		}
		frame, err := encode(req.ID, res)
		if err != nil {
			continue
		}
		if res.Delay > 0 {
			time.AfterFunc(res.Delay, func() { _ = c.write(frame) })
			continue
		}
		if err := c.write(frame); err != nil {
			return
		}
	}
}

func encode(id int64, res Response) ([]byte, error) {
	if res.Raw != nil {
		return res.Raw, nil
	}
	msg := &cdproto.Message{ID: id}
	if res.Error != nil {
		msg.Error = res.Error
		return easyjson.Marshal(msg)
	}
	buf, err := json.Marshal(res.Result)
	if err != nil {
		return nil, err
	}
	msg.Result = buf
	return easyjson.Marshal(msg)
}

// Result returns a handler answering with v.
func Result(v interface{}) Handler {
	return func(*cdproto.Message) Response {
		return Response{Result: v}
	}
}

// Error returns a handler answering with an error object.
func Error(code int64, message string) Handler {
	return func(*cdproto.Message) Response {
		return Response{Error: &cdproto.Error{Code: code, Message: message}}
	}
}

// EvalValue is the Runtime.evaluate result envelope for a by-value result.
func EvalValue(v interface{}) Response {
	buf, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return Response{Result: map[string]interface{}{
		"result": map[string]interface{}{
			"type":  valueType(v),
			"value": json.RawMessage(buf),
		},
	}}
}

// EvalUndefined is the Runtime.evaluate result envelope for undefined.
func EvalUndefined() Response {
	return Response{Result: map[string]interface{}{
		"result": map[string]interface{}{"type": "undefined"},
	}}
}

// EvalException is the Runtime.evaluate result envelope for a thrown
// exception.
func EvalException(text string) Response {
	return Response{Result: map[string]interface{}{
		"result": map[string]interface{}{"type": "object", "subtype": "error"},
		"exceptionDetails": map[string]interface{}{
			"exceptionId":  1,
			"text":         text,
			"lineNumber":   0,
			"columnNumber": 0,
		},
	}}
}

// Expression decodes the expression of a Runtime.evaluate request.
func Expression(req *cdproto.Message) string {
	var p struct {
		Expression string `json:"expression"`
	}
	_ = json.Unmarshal(req.Params, &p)
	return p.Expression
}

func valueType(v interface{}) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int64, float64:
		return "number"
	}
	return "object"
}
