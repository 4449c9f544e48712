package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"quill/common"
	"quill/rssfeeds"
	"quill/store"
	"quill/types"

	"github.com/spf13/cobra"
)

var (
	flagFeed  string
	flagCount int
	flagMerge bool
)

var importFeedCmd = &cobra.Command{
	Use:   "import-feed",
	Short: "Import RSS/Atom items into a snapshot",
	Long:  "Fetch a feed (preset key or URL) and write its items to the snapshot. Existing items and rules are kept with --merge.",
	RunE:  runImportFeed,
}

func init() {
	importFeedCmd.Flags().StringVar(&flagFeed, "feed", "", "feed preset (go, hn, tr) or URL (required)")
	importFeedCmd.Flags().IntVar(&flagCount, "count", rssfeeds.DefaultCount, "maximum number of items to import")
	importFeedCmd.Flags().BoolVar(&flagMerge, "merge", true, "merge into the existing snapshot instead of replacing it")
	_ = importFeedCmd.MarkFlagRequired("feed")
}

func runImportFeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	items, err := rssfeeds.Import(ctx, flagFeed, flagCount)
	if err != nil {
		return err
	}

	src, err := snapshotSource(ctx)
	if err != nil {
		return err
	}

	var snap types.Snapshot
	if flagMerge {
		snap, err = src.Load(ctx)
		if err != nil && !isMissing(err) {
			return fmt.Errorf("failed to load snapshot from %s: %w", src, err)
		}
	}
	snap = mergeItems(snap, items)
	snap.GeneratedAt = time.Now().UTC()

	if err := src.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot to %s: %w", src, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), OKStyle.Render(fmt.Sprintf("imported %d items", len(items)))+
		InfoStyle.Render(fmt.Sprintf(" -> %s (%d total)", src, len(snap.Items))))
	return nil
}

// mergeItems replaces items with matching IDs and appends the rest
func mergeItems(snap types.Snapshot, items []types.ContentItem) types.Snapshot {
	st := store.New()
	st.Replace(types.Snapshot{Items: append(append([]types.ContentItem{}, snap.Items...), items...), Rules: snap.Rules})
	merged := st.Snapshot()
	merged.GeneratedAt = snap.GeneratedAt
	return merged
}

func isMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, common.ErrObjectNotFound)
}
