package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/justestif/discat/internal/cache"
	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/execute"
	"github.com/justestif/discat/internal/extract"
	"github.com/justestif/discat/internal/plan"
	"github.com/justestif/discat/internal/runs"
)

var (
	syncField        string
	syncSource       string
	syncSkipExisting bool
	syncFilter       string
	syncIgnoreErrors bool
	syncYes          bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write a derived value into a custom field",
	Long: `Derive a value from every item of the last download and write it into
a custom field. The plan is printed first and nothing is written until it is
confirmed.

Sources: ` + sourceNames() + `

Examples:
  # Fill the "Decade" field, leaving items that already have one alone
  discat sync --field Decade --source decade --skip-existing

  # Only items whose style is House
  discat sync --field Style --source first_style --filter House
`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncField, "field", "", "Custom field name (exact match)")
	syncCmd.Flags().StringVar(&syncSource, "source", "", "Value source, e.g. year or first_style")
	syncCmd.Flags().BoolVar(&syncSkipExisting, "skip-existing", false, "Leave items that already have a value")
	syncCmd.Flags().StringVar(&syncFilter, "filter", "", "Only update items whose new value equals this")
	syncCmd.Flags().BoolVar(&syncIgnoreErrors, "ignore-errors", false, "Skip values a dropdown field does not allow")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "Apply without asking")
	_ = syncCmd.MarkFlagRequired("field")
	_ = syncCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	strategy, err := extract.Parse(syncSource)
	if err != nil {
		return fmt.Errorf("%w (sources: %s)", err, sourceNames())
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	items, err := loadCollection(a)
	if err != nil {
		return err
	}
	if strategy.NeedsMetadata() && !hasMetadata(items) {
		a.logger.Warn().Str("source", strategy.String()).Msg("no item has release metadata; run download without --no-metadata")
	}

	p, err := plan.NewPlanner(a.client).Plan(ctx, items, syncField, strategy, plan.Options{
		SkipIfHasValue: syncSkipExisting,
		Filter:         syncFilter,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSyncPlan(out, p)

	if len(p.Changes) == 0 {
		fmt.Fprintln(out, "\nNothing to update.")
		return nil
	}

	ignore := syncIgnoreErrors
	if len(p.ValidationErrors) > 0 && !ignore {
		if syncYes {
			return fmt.Errorf("%d values are not options of %q; rerun with --ignore-errors to skip them", len(p.ValidationErrors), p.FieldName)
		}
		ignore = confirm(cmd.InOrStdin(), out, fmt.Sprintf("\nSkip the %d invalid items and continue?", len(p.ValidationErrors)))
	}
	if !p.Ready(ignore) {
		fmt.Fprintln(out, "Nothing was written.")
		return nil
	}

	st, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	executor := a.executor()
	run := a.registry(st).Create(runs.KindSync, p, func(ctx context.Context, logger zerolog.Logger) (any, error) {
		return executor.Apply(ctx, p)
	})

	if !syncYes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("\nUpdate %q on %d items?", p.FieldName, len(p.Changes))) {
		_ = run.Cancel()
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	return startAndReport(ctx, cmd, run, "Updated")
}

// startAndReport runs a confirmed plan and prints its result.
func startAndReport(ctx context.Context, cmd *cobra.Command, run *runs.Run, verb string) error {
	if err := run.Start(ctx); err != nil {
		return err
	}
	v, err := run.Wait(ctx)
	if res, ok := v.Result.(*execute.Result); ok && res != nil {
		printResult(cmd.OutOrStdout(), verb, res)
	}
	return err
}

// loadCollection reads the latest downloaded collection.
func loadCollection(a *app) ([]collection.Item, error) {
	items, err := a.latest.Load()
	if errors.Is(err, cache.ErrNoCollection) {
		return nil, fmt.Errorf("no downloaded collection at %s; run discat download first", a.latest.Path())
	}
	return items, err
}

func hasMetadata(items []collection.Item) bool {
	for _, it := range items {
		if it.DetailedMetadata != nil {
			return true
		}
	}
	return false
}

func sourceNames() string {
	var names string
	for i, s := range extract.All() {
		if i > 0 {
			names += ", "
		}
		names += s.String()
	}
	return names
}
