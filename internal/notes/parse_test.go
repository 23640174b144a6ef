package notes

import (
	"strings"
	"testing"
	"time"

	"github.com/voxnote/voxnote/internal/meeting"
)

func TestParseNotesWellFormed(t *testing.T) {
	raw := `Summary: The team reviewed the Q3 roadmap and agreed on priorities.

Decisions:
- Ship the beta by October 15
- Drop the legacy importer

Action Items:
1. Write the migration guide (Owner: Dana)
2. Benchmark the new parser
`
	n, structured := parseNotes(raw)
	if !structured {
		t.Fatal("parseNotes() structured = false, want true")
	}
	if !strings.Contains(n.Summary, "Q3 roadmap") {
		t.Errorf("Summary = %q", n.Summary)
	}
	if len(n.Decisions) != 2 {
		t.Fatalf("Decisions = %v, want 2 entries", n.Decisions)
	}
	if n.Decisions[0] != "Ship the beta by October 15" {
		t.Errorf("Decisions[0] = %q", n.Decisions[0])
	}
	if len(n.Actions) != 2 {
		t.Fatalf("Actions = %v, want 2 entries", n.Actions)
	}
	if n.Actions[0].Task != "Write the migration guide" || n.Actions[0].Owner != "Dana" {
		t.Errorf("Actions[0] = %+v", n.Actions[0])
	}
	if n.Actions[1].Owner != "" {
		t.Errorf("Actions[1].Owner = %q, want empty", n.Actions[1].Owner)
	}
}

func TestParseNotesMarkdownHeadingsNoNumbering(t *testing.T) {
	raw := `## Summary
Weekly sync covering release readiness.

## Key Decisions
Ship on Friday
Hold the docs until Monday

## Next Steps
Update the changelog - owner: Riley
`
	n, structured := parseNotes(raw)
	if !structured {
		t.Fatal("parseNotes() structured = false, want true")
	}
	if n.Summary != "Weekly sync covering release readiness." {
		t.Errorf("Summary = %q", n.Summary)
	}
	if len(n.Decisions) != 2 {
		t.Fatalf("Decisions = %v", n.Decisions)
	}
	if len(n.Actions) != 1 {
		t.Fatalf("Actions = %+v", n.Actions)
	}
	if n.Actions[0].Task != "Update the changelog" || n.Actions[0].Owner != "Riley" {
		t.Errorf("Actions[0] = %+v", n.Actions[0])
	}
}

func TestParseNotesUnstructuredFallsBackToRawSummary(t *testing.T) {
	raw := "The model rambled about the weather and produced nothing usable here."
	n, structured := parseNotes(raw)
	if structured {
		t.Fatal("parseNotes() structured = true, want false")
	}
	if n.Summary != raw {
		t.Errorf("Summary = %q, want raw text preserved", n.Summary)
	}
	if len(n.Decisions) != 0 || len(n.Actions) != 0 {
		t.Errorf("lists should be empty, got %v / %v", n.Decisions, n.Actions)
	}
}

func TestParseActionOwnerVariants(t *testing.T) {
	cases := []struct {
		in        string
		wantTask  string
		wantOwner string
	}{
		{"Fix the build (Owner: Sam)", "Fix the build", "Sam"},
		{"Fix the build (assignee: Sam)", "Fix the build", "Sam"},
		{"Fix the build - owner: Sam", "Fix the build", "Sam"},
		{"Fix the build", "Fix the build", ""},
	}
	for _, tc := range cases {
		got := parseAction(tc.in)
		if got.Task != tc.wantTask || got.Owner != tc.wantOwner {
			t.Errorf("parseAction(%q) = %+v, want {%q %q}", tc.in, got, tc.wantTask, tc.wantOwner)
		}
	}
}

func TestTranscriptForPromptTruncatesFromFront(t *testing.T) {
	var segs []meeting.Segment
	for i := 0; i < 500; i++ {
		segs = append(segs, meeting.Segment{
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Text:  "line number with some padding text to make it long",
		})
	}
	out := transcriptForPrompt(segs, 512)
	if len(out) > 512*2 {
		t.Errorf("truncated transcript is %d chars, want <= %d", len(out), 512*2)
	}
	// The tail must survive truncation.
	if !strings.Contains(out, meeting.FormatOffset(499*time.Second)) {
		t.Error("truncation dropped the final segment")
	}
}

func TestBuildPromptWrapsTranscript(t *testing.T) {
	p := buildPrompt("[00:01] hello")
	if !strings.HasPrefix(p, "[INST] <<SYS>>") {
		t.Errorf("prompt missing instruction prefix: %q", p[:20])
	}
	if !strings.Contains(p, "[00:01] hello") {
		t.Error("prompt missing transcript")
	}
	if !strings.Contains(p, "[/INST]") {
		t.Error("prompt missing instruction suffix")
	}
}
