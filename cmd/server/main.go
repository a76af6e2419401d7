// Command server runs the offline-first marine tile server: it wires the
// resolver, sector orchestrator, derived-tile facade, and static asset
// store behind the httpapi router and listens until SIGINT or SIGTERM.
// Flags are parsed with github.com/spf13/cobra, the way the research-cli
// example's "geo tiles" subcommand does for its own MVT tile server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walkthru/seamap-tiled/internal/archive"
	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/connectivity"
	"github.com/walkthru/seamap-tiled/internal/derived"
	"github.com/walkthru/seamap-tiled/internal/httpapi"
	"github.com/walkthru/seamap-tiled/internal/lrupool"
	"github.com/walkthru/seamap-tiled/internal/resolver"
	"github.com/walkthru/seamap-tiled/internal/sector"
	"github.com/walkthru/seamap-tiled/internal/staticassets"
	"github.com/walkthru/seamap-tiled/internal/tilecache"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seamap-tiled",
		Short: "Offline-first vector/raster tile server for marine navigation",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 8080, "HTTP listen port")
	cmd.Flags().String("pmtiles-path", "./data/pmtiles", "offline archive root")
	cmd.Flags().String("style-path", "./data/styles", "style/sprite/glyph asset root")
	cmd.Flags().String("tiles-path", "./data/cache/tiles", "raw tile filesystem cache root")
	cmd.Flags().String("derived-path", "./data/cache/derived", "derived tile filesystem cache root")
	cmd.Flags().Duration("freshness-window", config.DefaultFreshnessWindow, "offline-vs-refresh cutoff")
	cmd.Flags().Int("lru-pool-size", config.DefaultLRUPoolSize, "max open local archive readers")
	cmd.Flags().String("extractor-path", "pmtiles-extract", "external sector extraction utility")
	cmd.Flags().Bool("debug", false, "enable debug-level logging")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	port, _ := flags.GetInt("port")
	pmtilesPath, _ := flags.GetString("pmtiles-path")
	stylePath, _ := flags.GetString("style-path")
	tilesPath, _ := flags.GetString("tiles-path")
	derivedPath, _ := flags.GetString("derived-path")
	freshnessWindow, _ := flags.GetDuration("freshness-window")
	lruPoolSize, _ := flags.GetInt("lru-pool-size")
	extractorPath, _ := flags.GetString("extractor-path")
	debug, _ := flags.GetBool("debug")

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg := config.Default()
	cfg.PMTilesPath = pmtilesPath
	cfg.StylePath = stylePath
	cfg.TilesPath = tilesPath
	cfg.DerivedPath = derivedPath
	cfg.FreshnessWindow = freshnessWindow
	cfg.LRUPoolSize = lruPoolSize
	cfg.ExtractorPath = extractorPath
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	localPool, err := lrupool.New(cfg.LRUPoolSize, archive.OpenLocal)
	if err != nil {
		return fmt.Errorf("building local archive pool: %w", err)
	}

	monitor := connectivity.New(cfg.ConnectivityProbeURL)
	monitor.Start(ctx)
	defer monitor.Stop()

	tileCache := tilecache.New(cfg.TilesPath)
	derivedCache := tilecache.New(cfg.DerivedPath)

	res := resolver.New(cfg, tileCache, localPool, monitor)
	der := derived.New(cfg, derivedCache, res)
	orch := sector.New(cfg, logger)
	assets := staticassets.New(cfg.StylePath)

	api := httpapi.New(cfg, res, der, orch, assets, tileCache, monitor, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		res.CloseAll()
	}()

	logger.Info().Str("addr", srv.Addr).Msg("starting tile server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("tile server: %w", err)
	}
	return nil
}
