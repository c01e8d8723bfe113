// Command bookmarkdp collects the bookmarked posts shown by a browser that
// is already running with remote debugging enabled, and exports them as a
// JSON document or a markdown digest.
//
// Usage:
//
//	bookmarkdp scrape --output bookmarks.json [--format json|markdown] [--folder name]
//
// Every flag can also be set through a BOOKMARKDP_<FLAG> environment variable
// (dashes become underscores), a .env file, or a bookmarkdp.yaml config file.
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
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
