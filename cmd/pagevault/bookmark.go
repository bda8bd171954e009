package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <url>",
	Short: "Save an online bookmark (no content capture)",
	Long: `Remember a URL and scroll position without capturing any content.
Opening a bookmark later loads the live page.`,
	Args: cobra.ExactArgs(1),
	RunE: runBookmark,
}

func init() {
	bookmarkCmd.Flags().Float64("scroll", 0, "initial scroll offset to restore")
	bookmarkCmd.Flags().String("title", "", "display title")
	rootCmd.AddCommand(bookmarkCmd)
}

func runBookmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	rawURL := args[0]
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		printError("Invalid URL %q: an absolute http(s) URL is required", rawURL)
		return fmt.Errorf("invalid url %q", rawURL)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	scroll, _ := cmd.Flags().GetFloat64("scroll")
	entry := types.NewOnlineEntry(rawURL, scroll)
	if title, _ := cmd.Flags().GetString("title"); title != "" {
		entry.Title = title
	}

	if err := st.Create(cmd.Context(), entry, nil); err != nil {
		printError("Failed to store bookmark: %v", err)
		return err
	}

	printInfo("Bookmarked %s", rawURL)
	fmt.Println(entry.ID)
	return nil
}
