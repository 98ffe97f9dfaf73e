package memory

import (
	"fmt"
	"strings"
)

// charsPerToken approximates tokenizer density for budget checks.
const charsPerToken = 4

// FormatPrompt renders memories as a bullet list for an LLM prompt,
// stopping before the rendered text would exceed tokenBudget.
// A non-positive budget renders everything.
func FormatPrompt(memories []Memory, tokenBudget int) string {
	if len(memories) == 0 {
		return ""
	}
	maxChars := tokenBudget * charsPerToken

	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	for _, m := range memories {
		line := fmt.Sprintf("- [%s/%s] %s\n", m.Type, m.Priority, truncate(m.Text(), 280))
		if tokenBudget > 0 && b.Len()+len(line) > maxChars {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
