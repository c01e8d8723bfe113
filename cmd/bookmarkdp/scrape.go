package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chromedp/bookmarkdp"
	"github.com/chromedp/bookmarkdp/client"
	"github.com/chromedp/bookmarkdp/render"
)

// newScrapeCmd creates the scrape command, binding its flags into v.
func newScrapeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape bookmarks and write them to a file",
		Long: `Scrape attaches to a browser started with --remote-debugging-port, opens the
bookmarks timeline, scrolls through it and writes the collected posts to --output.
Nothing is written when the scrape fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)

			return runScrape(cmd.Context(), cfg, logger.Sugar(), time.Now)
		},
	}

	def := defaultConfig()
	flags := cmd.Flags()
	flags.StringP("output", "o", "", "output file (required)")
	flags.StringP("format", "f", def.Format, "output format: json or markdown")
	flags.String("host", def.Host, "remote debugging host")
	flags.IntP("port", "p", def.Port, "remote debugging port")
	flags.String("path", def.Path, "remote debugging websocket path")
	flags.Int("max-scrolls", def.MaxScrolls, "number of scroll steps")
	flags.String("folder", "", "only keep bookmarks from this folder (case-insensitive)")
	flags.Duration("scroll-delay", def.ScrollDelay, "pause after each scroll step")
	flags.Duration("page-load-timeout", def.PageLoadTimeout, "time to wait for the timeline to render")
	flags.Duration("command-timeout", def.CommandTimeout, "default protocol command timeout")
	flags.Int("retries", def.Retries, "retries per pipeline stage")
	flags.Duration("retry-delay", def.RetryDelay, "pause between retries")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	return cmd
}

// runScrape connects to the browser, runs the pipeline and writes the
// rendered document. The browser is always disconnected on return.
func runScrape(ctx context.Context, cfg Config, log *zap.SugaredLogger, now func() time.Time) error {
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	urlstr := bookmarkdp.EndpointURL(cfg.Host, cfg.Port, cfg.Path)
	b := bookmarkdp.NewBrowser(urlstr,
		bookmarkdp.WithLogf(log.Infof),
		bookmarkdp.WithErrorf(log.Errorf),
		bookmarkdp.WithDebugf(log.Debugf),
		bookmarkdp.WithCommandTimeout(cfg.CommandTimeout),
	)
	log.Infof("connecting to %s", urlstr)
	if err := b.Connect(ctx); err != nil {
		explainConnectError(ctx, cfg, log, err)
		return err
	}
	defer func() {
		if err := b.Disconnect(); err != nil {
			log.Debugf("disconnect: %v", err)
		}
	}()

	s := bookmarkdp.NewScraper(
		bookmarkdp.NewPage(b, bookmarkdp.WithPageErrorf(log.Warnf)),
		bookmarkdp.WithMaxScrolls(cfg.MaxScrolls),
		bookmarkdp.WithScrollDelay(cfg.ScrollDelay),
		bookmarkdp.WithPageLoadTimeout(cfg.PageLoadTimeout),
		bookmarkdp.WithRetry(cfg.Retries, cfg.RetryDelay),
		bookmarkdp.WithFolder(cfg.Folder),
		bookmarkdp.WithScrapeLogf(log.Infof),
		bookmarkdp.WithScrapeDebugf(log.Debugf),
	)
	records, err := s.Run(ctx)
	if err != nil {
		return err
	}

	data, err := render.Render(format, records, now())
	if err != nil {
		return err
	}
	if err := render.Write(cfg.Output, data); err != nil {
		return err
	}
	log.Infow("bookmarks written", "count", len(records), "path", cfg.Output, "format", format)
	return nil
}

// explainConnectError logs whether anything answers on the debugging port,
// to tell a browser started without remote debugging from a wrong path.
func explainConnectError(ctx context.Context, cfg Config, log *zap.SugaredLogger, err error) {
	var cerr *bookmarkdp.ConnectionFailedError
	if !errors.As(err, &cerr) {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ver, verr := client.New(client.HostPort(cfg.Host, cfg.Port)).VersionInfo(ctx)
	if verr != nil {
		log.Warnf("nothing answers on %s:%d; start the browser with --remote-debugging-port=%d", cfg.Host, cfg.Port, cfg.Port)
		return
	}
	log.Warnf("%s is listening on port %d but refused %s; its websocket endpoint is %s",
		ver.Browser, cfg.Port, cfg.Path, ver.WebSocketDebuggerURL)
}
