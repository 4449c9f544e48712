package main

import (
	"fmt"
	"time"

	"quill/related"
	"quill/store"

	"github.com/spf13/cobra"
)

var (
	flagItemID string
	flagLimit  int
)

var relatedCmd = &cobra.Command{
	Use:   "related",
	Short: "Show the related items ranked for a post",
	RunE:  runRelated,
}

func init() {
	relatedCmd.Flags().StringVar(&flagItemID, "id", "", "ID of the post to rank against (required)")
	relatedCmd.Flags().IntVar(&flagLimit, "limit", 4, "number of related items to return")
	_ = relatedCmd.MarkFlagRequired("id")
}

func runRelated(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(cmd.Context())
	if err != nil {
		return err
	}

	st := store.New()
	st.Replace(snap)
	item, err := st.Item(flagItemID)
	if err != nil {
		return fmt.Errorf("post %q: %w", flagItemID, err)
	}

	now := time.Now()
	engine := related.NewEngine(related.WithClock(func() time.Time { return now }))
	results := engine.Related(cmd.Context(), item, st.PublishedItems(now), flagLimit, false)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Related to %s", label(item.ID, item.Title))))
	if len(results) == 0 {
		fmt.Fprintln(out, InfoStyle.Render("no related posts"))
		return nil
	}
	for i, r := range results {
		score := engine.Score(item, r)
		fmt.Fprintf(out, "%2d. %s %s\n", i+1, label(r.ID, r.Title), InfoStyle.Render(fmt.Sprintf("(score %.2f)", score.Score)))
	}
	return nil
}

func label(id, title string) string {
	if title == "" {
		return id
	}
	return fmt.Sprintf("%s [%s]", title, id)
}
