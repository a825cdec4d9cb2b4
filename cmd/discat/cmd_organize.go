package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/justestif/discat/internal/extract"
	"github.com/justestif/discat/internal/plan"
	"github.com/justestif/discat/internal/runs"
)

var (
	organizeFolder string
	organizeSource string
	organizeYes    bool
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Move items into the folder named after their derived value",
	Long: `Move every item whose derived value equals the folder name into that
folder. The folder must already exist.

Example:
  # Move every 1990s release into the "1990s" folder
  discat organize --folder 1990s --source decade
`,
	RunE: runOrganize,
}

func init() {
	organizeCmd.Flags().StringVar(&organizeFolder, "folder", "", "Target folder name (exact match)")
	organizeCmd.Flags().StringVar(&organizeSource, "source", "", "Value source, e.g. decade or format_simple")
	organizeCmd.Flags().BoolVarP(&organizeYes, "yes", "y", false, "Move without asking")
	_ = organizeCmd.MarkFlagRequired("folder")
	_ = organizeCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(organizeCmd)
}

func runOrganize(cmd *cobra.Command, args []string) error {
	strategy, err := extract.Parse(organizeSource)
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

	p, err := plan.NewPlanner(a.client).PlanFolder(ctx, items, organizeFolder, strategy)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printFolderPlan(out, p)

	if len(p.Moves) == 0 {
		fmt.Fprintln(out, "\nNothing to move.")
		return nil
	}

	st, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	executor := a.executor()
	run := a.registry(st).Create(runs.KindOrganize, p, func(ctx context.Context, logger zerolog.Logger) (any, error) {
		return executor.Move(ctx, p)
	})

	if !organizeYes && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("\nMove %d items to %q?", len(p.Moves), p.Folder.Name)) {
		_ = run.Cancel()
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}
	return startAndReport(ctx, cmd, run, "Moved")
}
