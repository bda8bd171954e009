package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage pagevault configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/pagevault/config.yaml (if set)
  2. ~/.config/pagevault/config.yaml

Environment variables can override config file settings using the PAGEVAULT_ prefix:
  PAGEVAULT_CACHE_CAPACITY=10
  PAGEVAULT_CAPTURE_THEME=dark
  PAGEVAULT_VIEWER_ADDR=127.0.0.1:9000`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration settings from all sources.`,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the current configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		printError("Failed to load configuration: %v", err)
		return err
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("cache_capacity:            %d\n", cfg.CacheCapacity)
	fmt.Printf("capture.theme:             %s\n", cfg.Capture.Theme)
	fmt.Printf("capture.fetch_timeout:     %s\n", cfg.Capture.FetchTimeout)
	fmt.Printf("capture.hydration_patterns: %v\n", cfg.Capture.HydrationPatterns)
	fmt.Printf("store.manifest_path:       %s\n", cfg.Store.ManifestPath)
	fmt.Printf("store.snapshots_dir:       %s\n", cfg.Store.SnapshotsDir)
	fmt.Printf("store.debounce_interval:   %s\n", cfg.Store.DebounceInterval)
	fmt.Printf("viewer.addr:               %s\n", cfg.Viewer.Addr)
	fmt.Printf("logging.level:             %s\n", cfg.Logging.Level)

	fmt.Println("\nEnvironment Overrides:")
	fmt.Println("----------------------")
	envVars := []string{
		"PAGEVAULT_CACHE_CAPACITY",
		"PAGEVAULT_CAPTURE_THEME",
		"PAGEVAULT_CAPTURE_FETCH_TIMEOUT",
		"PAGEVAULT_STORE_MANIFEST_PATH",
		"PAGEVAULT_STORE_SNAPSHOTS_DIR",
		"PAGEVAULT_STORE_DEBOUNCE_INTERVAL",
		"PAGEVAULT_VIEWER_ADDR",
		"PAGEVAULT_LOGGING_LEVEL",
	}

	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Printf("%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Println("(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	return editorCmd.Run()
}

// runConfigInit creates a default config file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.WriteDefault(); err != nil {
		printError("Failed to create config file: %v", err)
		return err
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	printInfo("Config file: %s", filepath.Join(configDir, "config.yaml"))
	return nil
}

// runConfigPath prints the config file location.
func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Println(filepath.Join(configDir, "config.yaml"))
	return nil
}
