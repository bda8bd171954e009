package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/payload"
	"github.com/jamesainslie/pagevault/pkg/pagevault/viewer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved pages for local replay",
	Long: `Start a local HTTP server that lists saved pages and replays offline
snapshots with scroll restoration. The server reloads automatically when
another pagevault process modifies the manifest.

The server runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Viewer.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := payload.NewCache(cfg.CacheCapacity)

	// Drop warm payloads when another process rewrites the manifest:
	// entries may have been removed or replaced out from under us.
	changes, err := st.Watch(ctx)
	if err != nil {
		printError("Manifest watching unavailable: %v", err)
	} else {
		go func() {
			for range changes {
				cache.InvalidateAll()
			}
		}()
	}

	printInfo("Serving saved pages on http://%s", addr)
	srv := viewer.New(st, cache, addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		printError("Server failed: %v", err)
		return err
	}
	return nil
}
