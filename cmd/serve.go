package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/doccode/catalog"
	"github.com/sarchlab/doccode/config"
	"github.com/sarchlab/doccode/webui"
)

func newServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the code generator form on a local port.",
		Long: "`serve` starts a local web server with the code generator " +
			"form and opens it in the default browser.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			cat, err := loadCatalog(e.cfg.CatalogFile)
			if err != nil {
				e.logger.Error("Failed to load catalog",
					zap.String("file", e.cfg.CatalogFile), zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, e, cat)
		},
	}

	flags := serveCmd.Flags()
	defaults := config.Default()
	flags.String("host", defaults.Host, "Host to listen on")
	flags.Int("port", defaults.Port, "Port to listen on, 0 picks a free port")
	flags.Bool("no-browser", false, "Do not open the browser")
	flags.String("catalog", "", "YAML file with the category options")

	return serveCmd
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}

	return catalog.LoadFile(path)
}

func serve(ctx context.Context, e *env, cat catalog.Catalog) error {
	server := webui.NewServer(e.allocator, cat).
		WithLogger(e.logger).
		WithAddress(e.cfg.Host, e.cfg.Port)

	listener, err := server.Listen()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(ctx, listener)
	})

	if e.cfg.OpenBrowser {
		url := webui.URL(listener)

		g.Go(func() error {
			openBrowserLater(ctx, e.logger, url, e.cfg.BrowserDelay)
			return nil
		})
	}

	return g.Wait()
}

func openBrowserLater(
	ctx context.Context,
	logger *zap.Logger,
	url string,
	delay time.Duration,
) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	err := browser.OpenURL(url)
	if err != nil {
		logger.Warn("Failed to open browser",
			zap.String("url", url), zap.Error(err))
	}
}
