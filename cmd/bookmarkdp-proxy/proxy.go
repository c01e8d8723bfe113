package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chromedp/bookmarkdp"
)

const (
	incomingBufferSize = 10 * 1024 * 1024
	outgoingBufferSize = 25 * 1024 * 1024
)

var wsUpgrader = &websocket.Upgrader{
	ReadBufferSize:  incomingBufferSize,
	WriteBufferSize: outgoingBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var wsDialer = &websocket.Dialer{
	ReadBufferSize:   outgoingBufferSize,
	WriteBufferSize:  incomingBufferSize,
	HandshakeTimeout: bookmarkdp.DefaultHandshakeTimeout,
}

func newCmd() *cobra.Command {
	var listen, remote, logFile string
	var frames bool
	cmd := &cobra.Command{
		Use:           "bookmarkdp-proxy",
		Short:         "Log DevTools protocol traffic between a client and a browser",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logFile)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv := &http.Server{
				Addr:              listen,
				Handler:           newProxy(remote, frames, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()

			logger.Info("proxy listening", zap.String("listen", listen), zap.String("remote", remote))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "localhost:9223", "listen address")
	cmd.Flags().StringVarP(&remote, "remote", "r", "localhost:9222", "remote address")
	cmd.Flags().StringVar(&logFile, "log", "", "also append logs to this file")
	cmd.Flags().BoolVar(&frames, "frames", false, "log full frame payloads")
	return cmd
}

// newLogger builds a console logger, optionally mirrored to path.
func newLogger(path string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.OutputPaths = []string{"stdout"}
	if path != "" {
		config.OutputPaths = append(config.OutputPaths, path)
	}
	return config.Build()
}

// newProxy returns a handler forwarding the websocket endpoint of remote
// frame by frame and every other request verbatim.
func newProxy(remote string, frames bool, logger *zap.Logger) http.Handler {
	var conns uint64
	mux := http.NewServeMux()
	mux.Handle("/", httputil.NewSingleHostReverseProxy(&url.URL{Scheme: "http", Host: remote}))
	ws := func(res http.ResponseWriter, req *http.Request) {
		log := logger.With(
			zap.Uint64("conn", atomic.AddUint64(&conns, 1)),
			zap.String("client", req.RemoteAddr),
		)
		endpoint := "ws://" + remote + req.URL.Path

		// connect outgoing websocket
		out, pres, err := wsDialer.DialContext(req.Context(), endpoint, nil)
		if err != nil {
			log.Error("could not connect", zap.String("endpoint", endpoint), zap.Error(err))
			http.Error(res, "could not connect to "+endpoint, http.StatusBadGateway)
			return
		}
		defer pres.Body.Close()
		defer out.Close()

		// connect incoming websocket
		in, err := wsUpgrader.Upgrade(res, req, nil)
		if err != nil {
			log.Error("could not upgrade", zap.Error(err))
			return
		}
		defer in.Close()
		log.Info("connected", zap.String("endpoint", endpoint))

		errc := make(chan error, 2)
		go proxyWS(log, "->", in, out, frames, errc)
		go proxyWS(log, "<-", out, in, frames, errc)
		err = <-errc
		log.Info("closing", zap.Error(err))
	}
	mux.HandleFunc(bookmarkdp.DefaultPath, ws)
	mux.HandleFunc("/devtools/", ws)
	return mux
}

// proxyWS copies frames from in to out until either side fails.
func proxyWS(log *zap.Logger, dir string, in, out *websocket.Conn, frames bool, errc chan<- error) {
	for {
		mt, buf, err := in.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		logFrame(log, dir, buf, frames)
		if err := out.WriteMessage(mt, buf); err != nil {
			errc <- err
			return
		}
	}
}

// logFrame logs the id and method of a protocol frame.
func logFrame(log *zap.Logger, dir string, buf []byte, frames bool) {
	fields := []zap.Field{zap.String("dir", dir), zap.Int("size", len(buf))}
	msg := new(cdproto.Message)
	if err := easyjson.Unmarshal(buf, msg); err != nil {
		fields = append(fields, zap.String("decode", err.Error()))
	} else {
		if msg.ID != 0 {
			fields = append(fields, zap.Int64("id", msg.ID))
		}
		if msg.Method != "" {
			fields = append(fields, zap.String("method", string(msg.Method)))
		}
		if msg.Error != nil {
			fields = append(fields, zap.String("error", msg.Error.Message))
		}
	}
	if frames {
		fields = append(fields, zap.String("frame", strings.TrimSpace(string(buf))))
	}
	log.Info("frame", fields...)
}
