package questions

import (
	"fmt"
	"strings"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// Render formats a question as outbound text with inline numbered options
func Render(q Question, total int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*Question %d of %d*\n%s", q.Ordinal+1, total, q.Prompt)

	if len(q.Options) > 0 {
		b.WriteString("\n")
		for i, opt := range q.Options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
		}
	}

	switch q.Type {
	case models.QuestionSingleSelect:
		b.WriteString("\n\nReply with the number of your choice.")
	case models.QuestionMultiSelect:
		b.WriteString("\n\nReply with one or more numbers, separated by commas (e.g. 1, 3).")
	}

	return b.String()
}

// RenderRetry prefixes the re-rendered question with the validation message
func RenderRetry(q Question, total int, verr *ValidationError) string {
	return fmt.Sprintf("⚠️ %s\n\n%s", verr.Message, Render(q, total))
}

// Summary renders collected answers in catalog order
func Summary(b *Bank, answers models.Answers) string {
	var sb strings.Builder
	for _, q := range b.All() {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "• %s: %s\n", q.ID, a.String())
	}
	return strings.TrimRight(sb.String(), "\n")
}
