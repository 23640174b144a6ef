package notes

import (
	"regexp"
	"strings"

	"github.com/voxnote/voxnote/internal/meeting"
)

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionDecisions
	sectionActions
)

var (
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•‣]|\d+[.)])\s*`)
	ownerParen   = regexp.MustCompile(`(?i)\(\s*(?:owner|assignee)\s*:?\s*([^)]+)\)\s*$`)
	ownerSuffix  = regexp.MustCompile(`(?i)\s+[-–—]\s*(?:owner|assignee)\s*:?\s*(\S.*)$`)
)

// parseNotes extracts summary, decisions, and action items from raw model
// output. Heading spellings and numbering styles vary between runs; matching
// is forgiving. The second return value reports whether any structure was
// found; when it is false the caller receives the raw text as the summary
// with empty lists.
func parseNotes(raw string) (meeting.Notes, bool) {
	var n meeting.Notes
	var summaryLines []string
	current := sectionNone
	structured := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if sec, rest, ok := matchHeading(line); ok {
			current = sec
			structured = true
			if rest != "" {
				line = rest
			} else {
				continue
			}
		}

		item := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if item == "" {
			continue
		}

		switch current {
		case sectionDecisions:
			n.Decisions = append(n.Decisions, item)
		case sectionActions:
			n.Actions = append(n.Actions, parseAction(item))
		default:
			summaryLines = append(summaryLines, item)
		}
	}

	if !structured {
		return meeting.Notes{Summary: strings.TrimSpace(raw)}, false
	}

	n.Summary = strings.Join(summaryLines, " ")
	return n, true
}

// matchHeading recognizes section headings like "Summary:", "## Key
// Decisions", or "2. Action Items", returning any content that follows the
// heading on the same line.
func matchHeading(line string) (section, string, bool) {
	stripped := strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
	stripped = strings.TrimLeft(stripped, "#")
	stripped = strings.TrimSpace(stripped)
	stripped = strings.Trim(stripped, "*_")

	head, rest, found := strings.Cut(stripped, ":")
	if !found {
		// A bare heading line with no colon, e.g. "## Decisions".
		head, rest = stripped, ""
	}
	if len(strings.Fields(head)) > 4 {
		return sectionNone, "", false
	}

	lower := strings.ToLower(head)
	switch {
	case strings.Contains(lower, "summary"):
		return sectionSummary, strings.TrimSpace(rest), true
	case strings.Contains(lower, "decision"):
		return sectionDecisions, strings.TrimSpace(rest), true
	case strings.Contains(lower, "action"),
		strings.Contains(lower, "follow-up"),
		strings.Contains(lower, "follow up"),
		strings.Contains(lower, "next steps"):
		return sectionActions, strings.TrimSpace(rest), true
	}
	return sectionNone, "", false
}

// parseAction splits an optional owner annotation off an action item line.
func parseAction(item string) meeting.ActionItem {
	if m := ownerParen.FindStringSubmatch(item); m != nil {
		return meeting.ActionItem{
			Task:  strings.TrimSpace(strings.TrimSuffix(item, m[0])),
			Owner: strings.TrimSpace(m[1]),
		}
	}
	if m := ownerSuffix.FindStringSubmatch(item); m != nil {
		return meeting.ActionItem{
			Task:  strings.TrimSpace(item[:len(item)-len(m[0])]),
			Owner: strings.TrimSpace(m[1]),
		}
	}
	return meeting.ActionItem{Task: item}
}
