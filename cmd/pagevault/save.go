package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/capture"
	"github.com/jamesainslie/pagevault/pkg/pagevault/config"
	"github.com/jamesainslie/pagevault/pkg/pagevault/resolver"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

var saveCmd = &cobra.Command{
	Use:   "save <url>",
	Short: "Capture a page as an offline snapshot",
	Long: `Fetch the page at the given URL, inline its stylesheets and images,
strip scripts, and store the result as a self-contained offline snapshot.

The capture fails as a whole only if the page itself cannot be fetched;
individual resources that fail to inline are left as absolute references.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	saveCmd.Flags().String("theme", "", "appearance applied before capture: device, light, dark (default from config)")
	saveCmd.Flags().Bool("device-dark", false, "treat the device color scheme as dark when applying the theme")
	saveCmd.Flags().String("title", "", "override the captured title")
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	rawURL := args[0]
	theme, err := resolveTheme(cmd, cfg)
	if err != nil {
		printError("%v", err)
		return err
	}
	deviceDark, _ := cmd.Flags().GetBool("device-dark")

	fetcher := resolver.NewHTTPFetcher(cfg.Capture.FetchTimeout)
	engine := capture.NewEngine(fetcher, capture.Options{
		HydrationPatterns: cfg.Capture.HydrationPatterns,
	})

	printInfo("Capturing %s ...", rawURL)
	snap, err := engine.Capture(cmd.Context(), capture.Request{
		URL:        rawURL,
		Theme:      theme,
		DeviceDark: deviceDark,
	})
	if err != nil {
		printError("Capture failed: %v", err)
		return err
	}

	if override, _ := cmd.Flags().GetString("title"); override != "" {
		snap.Title = override
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	entry := types.NewOfflineEntry(snap.URL, snap.Title, cfg.Store.SnapshotsDir)
	if err := st.Create(cmd.Context(), entry, []byte(snap.HTML)); err != nil {
		printError("Failed to store snapshot: %v", err)
		return err
	}

	printInfo("Saved %q", snap.Title)
	fmt.Println(entry.ID)
	return nil
}

// resolveTheme picks the capture theme from the flag or config.
func resolveTheme(cmd *cobra.Command, cfg *config.Config) (capture.ThemeMode, error) {
	name, _ := cmd.Flags().GetString("theme")
	if name == "" {
		name = cfg.Capture.Theme
	}
	switch capture.ThemeMode(name) {
	case capture.ThemeDevice, capture.ThemeLight, capture.ThemeDark:
		return capture.ThemeMode(name), nil
	}
	return "", fmt.Errorf("invalid theme %q: expected device, light, or dark", name)
}
