package notes

import (
	"strings"

	"github.com/voxnote/voxnote/internal/meeting"
)

const systemPrompt = `You are an AI assistant specialized in summarizing meeting transcripts.
Your task is to analyze the provided meeting transcript and generate comprehensive meeting notes.
Structure your answer with these sections:
Summary: a short paragraph covering the substance of the meeting.
Decisions: key decisions made during the meeting, as bullet points.
Action Items: tasks with assignees if mentioned, as bullet points.
Be concise, clear, and organized. Ignore small talk and focus on substantive discussion.`

// buildPrompt renders the llama-2 instruction template around the transcript.
func buildPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("[INST] <<SYS>>\n")
	b.WriteString(systemPrompt)
	b.WriteString("\n<</SYS>>\n\nHere is the meeting transcript:\n\n")
	b.WriteString(transcript)
	b.WriteString("\n\nPlease generate structured meeting notes for this transcript including a summary, key decisions, and action items. [/INST]\n")
	return b.String()
}

// transcriptForPrompt renders segments as timestamped lines, truncated from
// the front to fit the model's context window. The most recent discussion
// carries the decisions, so the tail is kept when the transcript is too long.
func transcriptForPrompt(segments []meeting.Segment, contextSize int) string {
	text := meeting.RenderTranscript(segments)

	// Rough budget: ~4 characters per token, leaving half the window for the
	// template and the completion.
	budget := contextSize * 2
	if budget <= 0 || len(text) <= budget {
		return text
	}
	cut := text[len(text)-budget:]
	if idx := strings.IndexByte(cut, '\n'); idx >= 0 && idx < len(cut)-1 {
		cut = cut[idx+1:]
	}
	return cut
}
