package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/execute"
	"github.com/justestif/discat/internal/plan"
)

func TestPrintSyncPlan_Truncates(t *testing.T) {
	p := &plan.SyncPlan{FieldID: 4, FieldName: "Decade", FieldType: collection.FieldDropdown, FieldOptions: []string{"1970s"}}
	for i := 0; i < 25; i++ {
		p.Changes = append(p.Changes, plan.Change{Title: fmt.Sprintf("Album %d", i), Proposed: "1970s"})
	}
	for i := 0; i < 12; i++ {
		p.ValidationErrors = append(p.ValidationErrors, plan.ValidationError{Title: fmt.Sprintf("Odd %d", i), Value: "1990s"})
	}
	p.Skipped = []plan.Skip{{Title: "Kept", Current: "1960s"}}

	var buf bytes.Buffer
	printSyncPlan(&buf, p)
	out := buf.String()

	if !strings.Contains(out, "Album 19") || strings.Contains(out, "Album 20") {
		t.Errorf("expected the first 20 changes only:\n%s", out)
	}
	if !strings.Contains(out, "... and 5 more") {
		t.Errorf("missing change overflow line:\n%s", out)
	}
	if !strings.Contains(out, "Odd 9") || strings.Contains(out, "Odd 10") {
		t.Errorf("expected the first 10 validation errors only:\n%s", out)
	}
	if !strings.Contains(out, "... and 2 more") {
		t.Errorf("missing validation overflow line:\n%s", out)
	}
	if !strings.Contains(out, "1 items already have a value") {
		t.Errorf("missing skipped count:\n%s", out)
	}
	if !strings.Contains(out, "(empty) -> 1970s") {
		t.Errorf("empty current value not labelled:\n%s", out)
	}
}

func TestPrintResult_ListsFailures(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, "Updated", &execute.Result{
		Attempted: 3,
		Updated:   2,
		Failed:    []execute.Failure{{Title: "Broken", Err: "discogs: 500"}},
	})

	out := buf.String()
	if !strings.Contains(out, "Updated 2 of 3 items") {
		t.Errorf("missing summary:\n%s", out)
	}
	if !strings.Contains(out, "Broken: discogs: 500") {
		t.Errorf("missing failed item:\n%s", out)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			var out bytes.Buffer
			if got := confirm(strings.NewReader(tt.input), &out, "Go?"); got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Go? [y/N]") {
				t.Errorf("prompt not written: %q", out.String())
			}
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "1", "2"})
	if err != nil {
		t.Fatalf("parseIDs() error = %v", err)
	}
	if fmt.Sprint(ids) != "[3 1 2]" {
		t.Errorf("ids = %v", ids)
	}

	if _, err := parseIDs([]string{"1", "1"}); err == nil {
		t.Error("expected duplicate error")
	}
	if _, err := parseIDs([]string{"x"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseFolderID(t *testing.T) {
	if _, err := parseFolderID("0"); err == nil {
		t.Error("folder 0 must be rejected")
	}
	if _, err := parseFolderID("1"); err == nil {
		t.Error("folder 1 must be rejected")
	}
	id, err := parseFolderID("42")
	if err != nil || id != 42 {
		t.Errorf("parseFolderID(42) = %d, %v", id, err)
	}
}

func TestConfirm_SharedReader(t *testing.T) {
	in := strings.NewReader("y\nn\n")
	var out bytes.Buffer
	if !confirm(in, &out, "first") {
		t.Error("first answer should be yes")
	}
	if confirm(in, &out, "second") {
		t.Error("second answer should be no")
	}
}
