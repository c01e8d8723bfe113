package bookmarkdp

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/browser"
	"github.com/mailru/easyjson"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	// DefaultCommandTimeout is the default time a command waits for its
	// response.
	DefaultCommandTimeout = 15 * time.Second

	// DefaultProbeTimeout is the default timeout of the liveness probe issued
	// by Connect.
	DefaultProbeTimeout = 5 * time.Second
)

// State is the connection state of a Browser.
type State int

// State values.
const (
	Disconnected State = iota
	Connecting
	Connected
)

// String satisfies stringer.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// emptyObj is sent as params for commands that take none.
var emptyObj = easyjson.RawMessage([]byte(`{}`))

// Browser is a Chrome DevTools Protocol client bound to a single websocket
// endpoint. Commands may be issued concurrently; responses are matched to
// their commands by id.
type Browser struct {
	urlstr string

	cmdTimeout   time.Duration
	probeTimeout time.Duration

	dial func(context.Context, string) (Transport, error)

	// connMu serializes Connect.
	connMu sync.Mutex

	// mu guards sess, state and abort. It is never held while dialing or
	// waiting on the remote.
	mu    sync.Mutex
	sess  *session
	state State
	abort context.CancelFunc

	// logging funcs
	logf, errf, debugf func(string, ...interface{})
}

// NewBrowser creates a client for the websocket endpoint at urlstr. No
// connection is made until Connect.
func NewBrowser(urlstr string, opts ...BrowserOption) *Browser {
	b := &Browser{
		urlstr:       urlstr,
		cmdTimeout:   DefaultCommandTimeout,
		probeTimeout: DefaultProbeTimeout,
		dial: func(ctx context.Context, urlstr string) (Transport, error) {
			return DialContext(ctx, ForceIP(urlstr))
		},
	}

	// apply options
	for _, o := range opts {
		o(b)
	}

	if b.logf == nil {
		b.logf = defaultLogf
	}
	if b.errf == nil {
		b.errf = func(s string, v ...interface{}) { b.logf("ERROR: "+s, v...) }
	}
	if b.debugf == nil {
		b.debugf = defaultDebugf
	}
	return b
}

// URL returns the endpoint the browser connects to.
func (b *Browser) URL() string {
	return b.urlstr
}

// State returns the current connection state.
func (b *Browser) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connect dials the endpoint, starts the receive loop and verifies the remote
// answers a liveness probe. It is a no-op when already connected. Commands
// issued before Connect returns fail with ErrNotConnected, and a concurrent
// Disconnect aborts the attempt.
func (b *Browser) Connect(ctx context.Context) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	if b.sess != nil && b.sess.alive() {
		b.mu.Unlock()
		return nil
	}
	b.sess, b.state, b.abort = nil, Connecting, cancel
	b.mu.Unlock()

	s, err := b.open(ctx)

	b.mu.Lock()
	b.abort = nil
	if err == nil && ctx.Err() != nil {
		// aborted by Disconnect after the probe succeeded
		s.close()
		err = ctx.Err()
	}
	if err != nil {
		b.state = Disconnected
		b.mu.Unlock()
		return &ConnectionFailedError{Addr: b.urlstr, Err: err}
	}
	b.sess, b.state = s, Connected
	b.mu.Unlock()

	go func() {
		<-s.done
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.sess == s {
			b.sess, b.state = nil, Disconnected
		}
	}()
	b.logf("connected to %s", b.urlstr)
	return nil
}

// open dials the endpoint and probes the new session.
func (b *Browser) open(ctx context.Context) (*session, error) {
	conn, err := b.dial(ctx, b.urlstr)
	if err != nil {
		return nil, err
	}
	s := newSession(conn, b.errf, b.debugf)
	if _, err := s.execute(ctx, browser.CommandGetVersion, nil, b.probeTimeout); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// Disconnect closes the connection, failing every pending command with
// ErrConnectionClosed, or aborts a Connect in progress. It is a no-op when
// not connected.
func (b *Browser) Disconnect() error {
	b.mu.Lock()
	if b.abort != nil {
		b.abort()
	}
	s := b.sess
	b.sess, b.state = nil, Disconnected
	b.mu.Unlock()

	if s == nil {
		return nil
	}
	s.close()
	b.logf("disconnected from %s", b.urlstr)
	return nil
}

// current returns the live session, if any.
func (b *Browser) current() *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Connected || b.sess == nil || !b.sess.alive() {
		return nil
	}
	return b.sess
}

// SendCommand sends a command and waits for its response, returning the
// result object. A zero timeout uses the browser's default command timeout.
func (b *Browser) SendCommand(ctx context.Context, method string, params easyjson.Marshaler, timeout time.Duration) (easyjson.RawMessage, error) {
	s := b.current()
	if s == nil {
		return nil, ErrNotConnected
	}
	if timeout <= 0 {
		timeout = b.cmdTimeout
	}
	return s.execute(ctx, method, params, timeout)
}

// cmdJob is a pending command. id is assigned and read by the run loop only.
type cmdJob struct {
	id     int64
	method string
	params easyjson.RawMessage
	res    chan cmdResult
}

type cmdResult struct {
	result easyjson.RawMessage
	err    error
}

// session is a single live connection. The run loop goroutine exclusively
// owns the id counter and the pending table.
type session struct {
	conn Transport

	cmdQueue    chan *cmdJob
	forgetQueue chan *cmdJob
	resQueue    chan *cdproto.Message
	readErr     chan error

	cancel context.CancelFunc

	// done is closed once the run loop has exited; err holds the error
	// delivered to commands that arrive afterwards.
	done chan struct{}
	err  error

	errf, debugf func(string, ...interface{})
}

func newSession(conn Transport, errf, debugf func(string, ...interface{})) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:        conn,
		cmdQueue:    make(chan *cmdJob),
		forgetQueue: make(chan *cmdJob),
		resQueue:    make(chan *cdproto.Message, 1),
		readErr:     make(chan error, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
		errf:        errf,
		debugf:      debugf,
	}
	go s.read(ctx)
	go s.run(ctx)
	return s
}

func (s *session) alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// close stops the loops and waits for the run loop to fail pending commands.
// Closing the connection unblocks a write stalled in the run loop.
func (s *session) close() {
	s.cancel()
	_ = s.conn.Close()
	<-s.done
}

// execute sends a command and waits for its response. The timeout covers
// the whole call, including the hand-off to the run loop.
func (s *session) execute(ctx context.Context, method string, params easyjson.Marshaler, timeout time.Duration) (easyjson.RawMessage, error) {
	buf := emptyObj
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return nil, err
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	job := &cmdJob{
		method: method,
		params: buf,
		res:    make(chan cmdResult, 1),
	}
	select {
	case s.cmdQueue <- job:
	case <-s.done:
		return nil, s.err
	case <-timer.C:
		return nil, &TimeoutError{Method: method, Duration: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-job.res:
		return r.result, r.err
	case <-timer.C:
		go s.forget(job)
		return nil, &TimeoutError{Method: method, Duration: timeout}
	case <-ctx.Done():
		go s.forget(job)
		return nil, ctx.Err()
	}
}

// forget removes job from the pending table, so that a late response is
// discarded.
func (s *session) forget(job *cmdJob) {
	select {
	case s.forgetQueue <- job:
	case <-s.done:
	}
}

// read continuously reads frames from the connection. The separate goroutine
// is needed since a websocket read is blocking, so it cannot be used in a
// select statement.
func (s *session) read(ctx context.Context) {
	for {
		buf, err := s.conn.Read()
		if err != nil {
			select {
			case s.readErr <- err:
			case <-ctx.Done():
			}
			return
		}
		msg, ok := decodeFrame(buf)
		if !ok {
			s.debugf("ignoring frame without id: %s", buf)
			continue
		}
		select {
		case s.resQueue <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) run(ctx context.Context) {
	defer close(s.done)
	defer s.conn.Close()

	var next int64
	pending := make(map[int64]*cmdJob)

	for {
		select {
		case job := <-s.cmdQueue:
			next++
			job.id = next
			pending[job.id] = job

			msg := &cdproto.Message{
				ID:     job.id,
				Method: cdproto.MethodType(job.method),
				Params: job.params,
			}
			if err := s.conn.Write(msg); err != nil {
				if ctx.Err() != nil {
					s.fail(pending, ErrConnectionClosed)
					return
				}
				s.errf("could not write to connection: %v", err)
				s.cancel()
				s.fail(pending, &TransportError{Err: err})
				return
			}

		case job := <-s.forgetQueue:
			if p, ok := pending[job.id]; ok && p == job {
				delete(pending, job.id)
			}

		case msg := <-s.resQueue:
			job, ok := pending[msg.ID]
			if !ok {
				s.debugf("ignoring response for unknown id %d", msg.ID)
				continue
			}
			delete(pending, msg.ID)
			if msg.Error != nil {
				job.res <- cmdResult{err: &CommandFailedError{Code: msg.Error.Code, Message: msg.Error.Message}}
				continue
			}
			job.res <- cmdResult{result: msg.Result}

		case err := <-s.readErr:
			if ctx.Err() != nil {
				s.fail(pending, ErrConnectionClosed)
				return
			}
			s.errf("could not read from connection: %v", err)
			s.cancel()
			s.fail(pending, &TransportError{Err: err})
			return

		case <-ctx.Done():
			s.fail(pending, ErrConnectionClosed)
			return
		}
	}
}

// fail resolves every pending command with err, in id order.
func (s *session) fail(pending map[int64]*cmdJob, err error) {
	s.err = err
	ids := maps.Keys(pending)
	slices.Sort(ids)
	for _, id := range ids {
		pending[id].res <- cmdResult{err: err}
		delete(pending, id)
	}
}

// BrowserOption is a browser option.
type BrowserOption func(*Browser)

// WithLogf is a browser option to specify a func to receive general logging.
func WithLogf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) {
		b.logf = f
	}
}

// WithErrorf is a browser option to specify a func to receive error logging.
func WithErrorf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) {
		b.errf = f
	}
}

// WithDebugf is a browser option to specify a func to receive debug logging
// (eg, ignored frames).
func WithDebugf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) {
		b.debugf = f
	}
}

// WithCommandTimeout is a browser option to set the default command timeout.
func WithCommandTimeout(d time.Duration) BrowserOption {
	return func(b *Browser) {
		b.cmdTimeout = d
	}
}

// WithProbeTimeout is a browser option to set the liveness probe timeout.
func WithProbeTimeout(d time.Duration) BrowserOption {
	return func(b *Browser) {
		b.probeTimeout = d
	}
}

// WithTransport is a browser option to replace the websocket dialer, eg to
// connect over a custom Transport.
func WithTransport(dial func(context.Context, string) (Transport, error)) BrowserOption {
	return func(b *Browser) {
		b.dial = dial
	}
}
