package main

import (
	"errors"
	"fmt"

	"quill/redirects"
	"quill/types"

	"github.com/spf13/cobra"
)

var (
	flagSource string
	flagTarget string
	flagRuleID string
)

var checkRedirectCmd = &cobra.Command{
	Use:   "check-redirect",
	Short: "Check whether a redirect rule would create a loop",
	RunE:  runCheckRedirect,
}

func init() {
	checkRedirectCmd.Flags().StringVar(&flagSource, "source", "", "source path of the rule (required)")
	checkRedirectCmd.Flags().StringVar(&flagTarget, "target", "", "target path of the rule (required)")
	checkRedirectCmd.Flags().StringVar(&flagRuleID, "id", "", "ID of an existing rule being edited")
	_ = checkRedirectCmd.MarkFlagRequired("source")
	_ = checkRedirectCmd.MarkFlagRequired("target")
}

// errLoop makes the command exit non-zero so it can gate scripts
var errLoop = errors.New("redirect would create a loop")

func runCheckRedirect(cmd *cobra.Command, args []string) error {
	snap, err := loadSnapshot(cmd.Context())
	if err != nil {
		return err
	}

	active := make([]types.RewriteRule, 0, len(snap.Rules))
	for _, r := range snap.Rules {
		if r.IsActive {
			active = append(active, r)
		}
	}

	candidate := types.RewriteRule{ID: flagRuleID, SourcePath: flagSource, TargetPath: flagTarget, IsActive: true}
	out := cmd.OutOrStdout()
	rule := fmt.Sprintf("%s -> %s", redirects.NormalizePath(flagSource), redirects.NormalizePath(flagTarget))
	if redirects.WouldCreateLoop(candidate, active) {
		fmt.Fprintln(out, ErrorStyle.Render("LOOP ")+rule)
		return errLoop
	}
	fmt.Fprintln(out, OKStyle.Render("OK   ")+rule)
	return nil
}
