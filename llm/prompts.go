package llm

import (
	"fmt"
	"strings"
)

const minutesPrompt = `You write meeting minutes from a diarized transcript.
Produce markdown with these sections: Summary, Decisions, Discussion, Open Questions.
Attribute statements to speakers by name. Do not invent content that is not in the transcript.`

const actionItemsPrompt = `You extract action items from a diarized meeting transcript.
Return every concrete commitment or follow-up. Use the speaker name as the owner when someone committed to the task.
Leave owner or due empty when the transcript does not state them.`

func systemPrompt(t ArtifactType, language, instructions string) string {
	var b strings.Builder
	switch t {
	case TypeActionItems:
		b.WriteString(actionItemsPrompt)
	default:
		b.WriteString(minutesPrompt)
	}
	if language != "" {
		fmt.Fprintf(&b, "\nWrite the output in the language with code %q.", language)
	}
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString("\n\nAdditional instructions:\n")
		b.WriteString(instructions)
	}
	return b.String()
}
