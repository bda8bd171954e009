package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

var openCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Mark a saved page opened and print its location",
	Long: `Record an open on the entry (for --recent ranking) and print the
snapshot's payload path, or the live URL for bookmarks. The printed
value is suitable for handing to a browser.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
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

	if err := st.MarkOpened(cmd.Context(), entry.ID); err != nil {
		printError("Failed to record open: %v", err)
		return err
	}

	if entry.Mode == types.ModeOffline && entry.FilePath != nil {
		fmt.Println(*entry.FilePath)
	} else {
		fmt.Println(entry.URL)
	}
	return nil
}
