// Command bookmarkdp-proxy proxies DevTools protocol traffic between a client
// (such as bookmarkdp) and a browser, logging every frame it forwards.
//
// Point the client at the proxy's listen address instead of the browser's
// remote debugging port:
//
//	bookmarkdp-proxy -l localhost:9223 -r localhost:9222
//	bookmarkdp scrape --port 9223 --output bookmarks.json
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
