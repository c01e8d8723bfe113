// Package bookmarkdp collects bookmarked posts from a browser that is already
// running with remote debugging enabled.
//
// A Browser holds a single websocket session to the browser's DevTools
// protocol endpoint and multiplexes concurrent commands over it. A Page wraps
// a Browser with the page-level operations (enable, navigate, evaluate), and
// a Scraper drives a Page through the collection pipeline: navigate to the
// bookmarks timeline, wait for it to render, scroll it, expand truncated
// posts, and extract, filter and deduplicate the records.
//
// bookmarkdp never launches a browser. Start one with
// --remote-debugging-port and point a Browser at it:
//
//	b := bookmarkdp.NewBrowser(bookmarkdp.EndpointURL("127.0.0.1", 9222, "/cdp"))
//	if err := b.Connect(ctx); err != nil {
//		return err
//	}
//	defer b.Disconnect()
//	records, err := bookmarkdp.NewScraper(bookmarkdp.NewPage(b)).Run(ctx)
package bookmarkdp
