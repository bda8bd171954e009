package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/pagevault/pkg/pagevault/output"
	"github.com/jamesainslie/pagevault/pkg/pagevault/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved pages",
	Long: `List all saved snapshots and bookmarks, newest first.

Use --recent to rank by last-opened time instead, and -o to select an
output format (pretty, plain, json, yaml, paths).`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "pretty", "output format: "+fmt.Sprint(output.Available()))
	cmd.Flags().Bool("recent", false, "rank by last-opened time")
	cmd.Flags().Int("limit", 0, "maximum entries to show (0 = all)")
}

func init() {
	addListFlags(listCmd)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
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

	recent, _ := cmd.Flags().GetBool("recent")
	limit, _ := cmd.Flags().GetInt("limit")

	var entries []types.SnapshotEntry
	if recent {
		entries, err = st.RecentlyOpened(cmd.Context(), limit)
	} else {
		entries, err = st.List(cmd.Context())
		if err == nil && limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
	}
	if err != nil {
		printError("Failed to list entries: %v", err)
		return err
	}

	result := output.NewResult(entries)
	result.ManifestPath = cfg.Store.ManifestPath
	result.Recent = recent

	name, _ := cmd.Flags().GetString("output")
	formatter, err := output.Get(name)
	if err != nil {
		printError("%v (available: %v)", err, output.Available())
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		printError("Failed to format output: %v", err)
		return err
	}
	fmt.Print(buf.String())
	return nil
}
