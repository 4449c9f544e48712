package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"quill/common"
	"quill/store"
	"quill/types"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagSnapshot string
	flagS3Bucket string
	flagS3Prefix string
	flagS3Region string
)

var rootCmd = &cobra.Command{
	Use:           "quillctl",
	Short:         "Inspect related content and redirect rules",
	Long:          "quillctl runs the related-content ranking and redirect loop checks against a content snapshot.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "snapshot.json", "path to a JSON or YAML snapshot")
	rootCmd.PersistentFlags().StringVar(&flagS3Bucket, "s3-bucket", "", "read/write the snapshot in this S3 bucket instead of a file")
	rootCmd.PersistentFlags().StringVar(&flagS3Prefix, "s3-prefix", "", "key prefix inside the S3 bucket")
	rootCmd.PersistentFlags().StringVar(&flagS3Region, "s3-region", "", "AWS region for the S3 bucket")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(checkRedirectCmd)
	rootCmd.AddCommand(importFeedCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quillctl %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// snapshotSource returns the S3 source when a bucket is given, else the file source
func snapshotSource(ctx context.Context) (store.Source, error) {
	if flagS3Bucket == "" {
		return store.FileSource{Path: flagSnapshot}, nil
	}
	client, err := common.NewS3(ctx, common.S3Config{Region: flagS3Region})
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(flagS3Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return store.S3Source{Client: client, Bucket: flagS3Bucket, Prefix: prefix}, nil
}

func loadSnapshot(ctx context.Context) (types.Snapshot, error) {
	src, err := snapshotSource(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap, err := src.Load(ctx)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("failed to load snapshot from %s: %w", src, err)
	}
	return snap, nil
}
