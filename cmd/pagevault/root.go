package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/pagevault/pkg/pagevault/config"
	"github.com/jamesainslie/pagevault/pkg/pagevault/logging"
	"github.com/jamesainslie/pagevault/pkg/pagevault/store"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "pagevault",
		Short: "Save web pages as self-contained offline snapshots",
		Long: `Pagevault captures live web pages as self-contained HTML snapshots,
with stylesheets and images inlined so they replay with no network access.
It also keeps lightweight online bookmarks (a URL plus scroll position).

Examples:
  pagevault save https://example.com/article   # Capture an offline snapshot
  pagevault bookmark https://example.com/docs  # Remember URL + scroll only
  pagevault                                    # List saved pages
  pagevault list -o json                       # Machine-readable listing
  pagevault serve                              # Replay snapshots locally
  pagevault remove <id>                        # Delete a snapshot`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/pagevault/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// The root command doubles as "list".
	addListFlags(rootCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the application config, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		printError("Failed to load configuration: %v", err)
		return nil, err
	}
	return cfg, nil
}

// setupLogging initializes file logging from the loaded config. Console
// logging at debug level is enabled with --verbose.
func setupLogging(cfg *config.Config) {
	level := cfg.Logging.Level
	consoleLevel := ""
	if getVerbose() {
		consoleLevel = "debug"
	}

	var maxSize int64
	if parsed, err := humanize.ParseBytes(cfg.Logging.Rotation.MaxSize); err == nil {
		maxSize = int64(parsed)
	}

	if err := logging.Init(logging.Config{
		Level: level,
		Path:  cfg.Logging.Path,
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxAge:     cfg.Logging.Rotation.MaxAge,
			MaxBackups: cfg.Logging.Rotation.MaxBackups,
			Daily:      cfg.Logging.Rotation.Daily,
		},
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	}); err != nil {
		printError("Failed to initialize logging: %v", err)
	}
}

// openStore creates the manifest store from config.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.Store.ManifestPath, store.Options{
		DebounceInterval: cfg.Store.DebounceInterval,
	})
	if err != nil {
		printError("Failed to open manifest: %v", err)
		return nil, err
	}
	return st, nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
