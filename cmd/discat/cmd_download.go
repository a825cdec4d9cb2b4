package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/justestif/discat/internal/enrich"
	"github.com/justestif/discat/internal/runs"
	"github.com/justestif/discat/internal/sync"
)

var (
	downloadUseCache   bool
	downloadClearCache bool
	downloadNoMetadata bool
	downloadYes        bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the collection and enrich new or changed items",
	Long: `Download the whole collection, compare it with the cached snapshot and
fetch custom field values and release metadata only for items that are new
or changed since the last run.

Examples:
  # Incremental download
  discat download --use-cache

  # Start over, skipping the slow metadata pass
  discat download --use-cache --clear-cache --no-metadata
`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadUseCache, "use-cache", false, "Reconcile against the cached snapshot and save the new one")
	downloadCmd.Flags().BoolVar(&downloadClearCache, "clear-cache", false, "Delete the cached snapshot before downloading")
	downloadCmd.Flags().BoolVar(&downloadNoMetadata, "no-metadata", false, "Skip fetching detailed release metadata")
	downloadCmd.Flags().BoolVarP(&downloadYes, "yes", "y", false, "Fetch metadata without asking")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	service := a.downloader(st)
	registry := a.registry(st)

	opts := sync.DownloadOptions{
		UseCache:    downloadUseCache,
		ClearCache:  downloadClearCache,
		Annotations: true,
		Metadata:    !downloadNoMetadata,
	}
	if !downloadYes {
		opts.ConfirmMetadata = func(items int, estimate time.Duration) bool {
			minutes := int(math.Ceil(estimate.Minutes()))
			return confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
				fmt.Sprintf("Fetch detailed metadata for %d items? This takes about %d minutes.", items, minutes))
		}
	}

	preview := map[string]bool{
		"use_cache":   opts.UseCache,
		"clear_cache": opts.ClearCache,
		"metadata":    opts.Metadata,
	}
	run := registry.Create(runs.KindDownload, preview, func(ctx context.Context, logger zerolog.Logger) (any, error) {
		return service.Download(ctx, opts)
	})
	if err := run.Start(ctx); err != nil {
		return err
	}
	v, err := run.Wait(ctx)
	if err != nil {
		return err
	}

	res, _ := v.Result.(*sync.Result)
	if res == nil {
		return nil
	}
	printDownload(cmd, res)
	return nil
}

func printDownload(cmd *cobra.Command, res *sync.Result) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nDownloaded %d items: %d new, %d changed, %d unchanged.\n",
		res.Total, res.Counts.New, res.Counts.Changed, res.Counts.Unchanged)
	fmt.Fprintf(w, "Folders: %d  Custom fields: %d\n", len(res.Folders), len(res.Fields))
	printPass(cmd, "Custom field values", res.Annotations)
	if res.MetadataSkipped {
		fmt.Fprintln(w, "Release metadata: skipped")
	} else {
		printPass(cmd, "Release metadata", res.Metadata)
	}
	if res.CacheSaved {
		fmt.Fprintln(w, "Cache saved.")
	}
}

func printPass(cmd *cobra.Command, name string, r *enrich.PassReport) {
	if r == nil {
		return
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d fetched, %d via master, %d failed\n", name, r.Fetched, r.Fallbacks, r.Failed)
	for _, title := range r.Failures {
		fmt.Fprintf(w, "  failed: %s\n", title)
	}
}
