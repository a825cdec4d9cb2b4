package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/justestif/discat/internal/execute"
	"github.com/justestif/discat/internal/plan"
)

// Preview limits.
const (
	previewChanges = 20
	previewErrors  = 10
)

// printSyncPlan writes the preview of a field sync.
func printSyncPlan(w io.Writer, p *plan.SyncPlan) {
	fmt.Fprintf(w, "Field: %s (id %d, %s)\n", p.FieldName, p.FieldID, p.FieldType)
	if len(p.FieldOptions) > 0 {
		fmt.Fprintf(w, "Options: %s\n", strings.Join(p.FieldOptions, ", "))
	}
	fmt.Fprintf(w, "Changes: %d  Skipped: %d  Invalid: %d  Filtered out: %d\n",
		len(p.Changes), len(p.Skipped), len(p.ValidationErrors), p.FilteredOut)

	if len(p.Changes) > 0 {
		fmt.Fprintln(w, "\nChanges:")
		for i, c := range p.Changes {
			if i == previewChanges {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.Changes)-previewChanges)
				break
			}
			current := c.Current
			if current == "" {
				current = "(empty)"
			}
			fmt.Fprintf(w, "  %s: %s -> %s\n", c.Title, current, c.Proposed)
		}
	}

	if len(p.ValidationErrors) > 0 {
		fmt.Fprintln(w, "\nNot a dropdown option:")
		for i, v := range p.ValidationErrors {
			if i == previewErrors {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.ValidationErrors)-previewErrors)
				break
			}
			fmt.Fprintf(w, "  %s: %q\n", v.Title, v.Value)
		}
	}

	if len(p.Skipped) > 0 {
		fmt.Fprintf(w, "\n%d items already have a value and were skipped.\n", len(p.Skipped))
	}
}

// printFolderPlan writes the preview of a folder reassignment.
func printFolderPlan(w io.Writer, p *plan.FolderPlan) {
	fmt.Fprintf(w, "Folder: %s (id %d)\n", p.Folder.Name, p.Folder.ID)
	fmt.Fprintf(w, "Moves: %d  Already there: %d  No value: %d  Other values: %d\n",
		len(p.Moves), p.AlreadyInFolder, p.NoValue, p.Mismatched)

	if len(p.Moves) > 0 {
		fmt.Fprintln(w, "\nMoves:")
		for i, m := range p.Moves {
			if i == previewChanges {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.Moves)-previewChanges)
				break
			}
			fmt.Fprintf(w, "  %s (folder %d)\n", m.Title, m.FromFolderID)
		}
	}
}

// printResult writes the outcome of an execution and lists every item that
// needs a manual update.
func printResult(w io.Writer, verb string, res *execute.Result) {
	fmt.Fprintf(w, "\n%s %d of %d items in %s.\n", verb, res.Updated, res.Attempted, res.Elapsed.Round(time.Second))
	if len(res.Failed) == 0 {
		return
	}
	fmt.Fprintf(w, "%d items failed and need a manual update:\n", len(res.Failed))
	for _, f := range res.Failed {
		fmt.Fprintf(w, "  %s: %s\n", f.Title, f.Err)
	}
}

// confirm asks a yes/no question. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	switch strings.ToLower(strings.TrimSpace(readLine(in))) {
	case "y", "yes":
		return true
	}
	return false
}

// readLine reads up to the next newline one byte at a time, so that later
// prompts on the same reader see the rest of the input.
func readLine(in io.Reader) string {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			line = append(line, buf[0])
		}
		if err != nil {
			break
		}
	}
	return string(line)
}
