package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var seenLimit int

// seenCmd represents the seen command
var seenCmd = &cobra.Command{
	Use:   "seen",
	Short: "List recently relayed stories",
	Long: `List the most recently recorded stories from the seen-items store,
newest first. Only stories that were transmitted successfully are recorded.`,
	Example: `  igrelay seen
  igrelay seen --limit 50
  igrelay seen --limit 0   # everything`,
	Args: cobra.NoArgs,
	RunE: runSeen,
}

func init() {
	rootCmd.AddCommand(seenCmd)
	seenCmd.Flags().IntVarP(&seenLimit, "limit", "n", 20, "number of stories to show (0 for all)")
}

func runSeen(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openSeenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open seen store: %w", err)
	}
	defer store.Close()

	stories, err := store.List(ctx, seenLimit)
	if err != nil {
		return err
	}
	if len(stories) == 0 {
		fmt.Println("No stories recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STORY ID\tUSER ID\tRECORDED")
	for _, s := range stories {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.StoryID, s.UserID, s.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
