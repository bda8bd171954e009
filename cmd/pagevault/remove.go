package main

import (
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved page and its stored content",
	Long: `Remove the entry from the manifest and delete its payload file.
Payload deletion is best-effort: removal succeeds even if the file is
already gone.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

var clearRecentsCmd = &cobra.Command{
	Use:   "clear-recents",
	Short: "Clear the recently-opened marks on all entries",
	Long:  `Reset every entry's last-opened time. Listing order by save time is unaffected.`,
	Args:  cobra.NoArgs,
	RunE:  runClearRecents,
}

func init() {
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearRecentsCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	if err := st.Remove(cmd.Context(), args[0]); err != nil {
		printError("%v", err)
		return err
	}
	printInfo("Removed %s", args[0])
	return nil
}

func runClearRecents(cmd *cobra.Command, args []string) error {
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

	if err := st.ClearAllOpenedMarks(cmd.Context()); err != nil {
		printError("Failed to clear recents: %v", err)
		return err
	}
	if err := st.Flush(); err != nil {
		printError("Failed to persist manifest: %v", err)
		return err
	}
	printInfo("Cleared recently-opened marks")
	return nil
}
