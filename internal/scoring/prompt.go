package scoring

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an experienced technical interviewer. You evaluate completed interview transcripts strictly and concisely."

const promptTemplate = `Evaluate the following interview transcript.

Transcript:
%s

Score the candidate on each of these dimensions from 1 to 10, each with a short justification:
1. Factual Accuracy: were the candidate's statements correct and precise?
2. Confidentiality Discipline: did the candidate avoid disclosing information they should not share?

Finish with an overall qualitative recommendation (strong hire, hire, lean hire, or no hire).`

// buildPrompt embeds the normalized transcript verbatim into the fixed
// evaluation template
func buildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}

// normalizeMessages extracts qualifying transcript entries from a call
// record and renders them one line per utterance, "<Role>: <text>".
// Entries without textual content and non-participant senders are skipped.
func normalizeMessages(messages []CallMessage) string {
	var lines []string
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role, ok := speakerFor(m.Sender)
		if !ok {
			continue
		}
		lines = append(lines, role+": "+content)
	}
	return strings.Join(lines, "\n")
}

func speakerFor(sender string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(sender)) {
	case "user", "candidate":
		return "Candidate", true
	case "bot", "assistant", "interviewer":
		return "Interviewer", true
	default:
		// System prompts and tool traffic are not part of the interview
		return "", false
	}
}
