package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/voxnote/voxnote/internal/meeting"
)

// messageLimit is Discord's maximum message length. Longer notes are sent as
// a file attachment instead.
const messageLimit = 2000

// renderNotes formats a meeting as a markdown document.
func renderNotes(m *meeting.Meeting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Meeting Notes: %s\n\n", m.Name)
	fmt.Fprintf(&b, "_%s, %s_\n\n", m.StartedAt.Format("2006-01-02 15:04"), m.Duration().Round(time.Second))

	b.WriteString("## Summary\n")
	summary := m.Notes.Summary
	if summary == "" {
		summary = "(no summary produced)"
	}
	b.WriteString(summary)
	b.WriteString("\n")

	if len(m.Notes.Decisions) > 0 {
		b.WriteString("\n## Decisions\n")
		for _, d := range m.Notes.Decisions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	if len(m.Notes.Actions) > 0 {
		b.WriteString("\n## Action Items\n")
		for _, item := range m.Notes.Actions {
			if item.Owner != "" {
				fmt.Fprintf(&b, "- %s (owner: %s)\n", item.Task, item.Owner)
			} else {
				fmt.Fprintf(&b, "- %s\n", item.Task)
			}
		}
	}

	return b.String()
}

// sendNotes delivers the notes inline when they fit, as an attachment
// otherwise.
func (a *Adapter) sendNotes(channelID string, m *meeting.Meeting) {
	content := renderNotes(m)
	if len(content) <= messageLimit {
		a.reply(channelID, content)
		return
	}

	filename := fmt.Sprintf("notes_%s.md", m.ID)
	if _, err := a.dg.ChannelFileSend(channelID, filename, strings.NewReader(content)); err != nil {
		a.logger.Warn().Err(err).Str("channel_id", channelID).Msg("file send failed")
	}
}
