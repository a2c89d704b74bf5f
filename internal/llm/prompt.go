package llm

import (
	"context"
	"fmt"
	"strings"
)

// correctionSystemPrompt constrains the batched cleanup call: word-splitting
// repairs only, no rewriting, one line out per line in.
const correctionSystemPrompt = `You repair speech-to-text transcript lines.

Tasks:
- Join words that were split by spurious spaces
- Fix obvious transcription artifacts inside words

Rules:
- Preserve the original meaning exactly
- Keep the same language as each input line
- Do not summarize, rephrase or add punctuation
- Output exactly one corrected line per input line, in the same order
- If a line needs no repair, output it unchanged
- Output ONLY the corrected lines, nothing else`

// CorrectLines runs one batched cleanup call and returns one corrected line
// per input line, positionally.
func CorrectLines(ctx context.Context, a Adapter, lines []string) ([]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	out, err := a.Complete(ctx, correctionSystemPrompt, strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}

	corrected := splitLines(out)
	if len(corrected) != len(lines) {
		return nil, fmt.Errorf("correction returned %d lines for %d inputs", len(corrected), len(lines))
	}
	return corrected, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// SummaryKind selects the shape of the generated meeting summary.
type SummaryKind string

const (
	SummaryGeneral    SummaryKind = "general"
	SummaryActionList SummaryKind = "actions"
	SummaryMinutes    SummaryKind = "minutes"
)

func summarySystemPrompt(kind SummaryKind) string {
	base := "You summarize meeting transcripts. Use the transcript's language. Be factual; do not invent content.\n\n"
	switch kind {
	case SummaryActionList:
		return base + "Produce a bullet list of action items: owner, task, deadline if mentioned."
	case SummaryMinutes:
		return base + "Produce formal meeting minutes: attendees, topics discussed, decisions, next steps."
	default:
		return base + "Produce a concise summary: main topics, key points, decisions and open questions."
	}
}

// Summarize generates a summary of the full transcript text in one call.
func Summarize(ctx context.Context, a Adapter, transcript string, kind SummaryKind) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("empty transcript")
	}
	return a.Complete(ctx, summarySystemPrompt(kind), transcript)
}
