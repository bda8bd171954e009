package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved page's metadata",
	Long: `Display a single entry's metadata as JSON.

With --html, the stored snapshot payload is written to stdout instead,
suitable for piping into a file or a browser.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().Bool("html", false, "dump the stored HTML payload instead of metadata")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	entry, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		printError("%v", err)
		return err
	}

	if dumpHTML, _ := cmd.Flags().GetBool("html"); dumpHTML {
		if entry.Mode != types.ModeOffline || entry.FilePath == nil {
			printError("Entry %s is an online bookmark with no stored content", entry.ID)
			return fmt.Errorf("no payload for %s", entry.ID)
		}
		data, err := os.ReadFile(*entry.FilePath)
		if err != nil {
			printError("Failed to read payload: %v", err)
			return err
		}
		_, _ = os.Stdout.Write(data)
		return nil
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
