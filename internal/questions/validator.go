package questions

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// ValidationError is a user-correctable problem with an answer
type ValidationError struct {
	QuestionID string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer for %s: %s", e.QuestionID, e.Message)
}

func invalid(q Question, format string, args ...any) *ValidationError {
	return &ValidationError{QuestionID: q.ID, Message: fmt.Sprintf(format, args...)}
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// nameSeparators are trimmed off each remaining token of a contact answer
const nameSeparators = "-–—,;:|/<>()[]"

// Validate checks a raw answer against the question's declared type and returns the normalised value.
// The error, when non-nil, is always a *ValidationError.
func Validate(q Question, raw string) (models.Answer, error) {
	text := strings.TrimSpace(raw)

	switch q.Type {
	case models.QuestionFreeText:
		return validateFreeText(q, text)
	case models.QuestionSingleSelect:
		return validateSingleSelect(q, text)
	case models.QuestionMultiSelect:
		return validateMultiSelect(q, text)
	case models.QuestionContactExtract:
		return validateContact(q, text)
	default:
		return models.Answer{}, invalid(q, "this question can't be answered right now")
	}
}

func validateFreeText(q Question, text string) (models.Answer, error) {
	minLen := q.Validation.MinLength
	if minLen < 1 {
		minLen = 1
	}
	if utf8.RuneCountInString(text) < minLen {
		if minLen == 1 {
			return models.Answer{}, invalid(q, "Please type an answer.")
		}
		return models.Answer{}, invalid(q, "Please share a little more detail (at least %d characters).", minLen)
	}
	return models.FreeTextAnswer(text), nil
}

func validateSingleSelect(q Question, text string) (models.Answer, error) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(q.Options) {
		return models.Answer{}, invalid(q, "Please reply with a single number between 1 and %d.", len(q.Options))
	}
	return models.SingleSelectAnswer(q.Options[n-1]), nil
}

func validateMultiSelect(q Question, text string) (models.Answer, error) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})

	picked := make(map[int]bool)
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > len(q.Options) {
			continue
		}
		picked[n-1] = true
	}
	if len(picked) == 0 {
		return models.Answer{}, invalid(q, "Please reply with one or more numbers between 1 and %d, separated by commas.", len(q.Options))
	}

	indexes := make([]int, 0, len(picked))
	for i := range picked {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	labels := make([]string, len(indexes))
	for i, idx := range indexes {
		labels[i] = q.Options[idx]
	}
	return models.MultiSelectAnswer(labels), nil
}

func validateContact(q Question, text string) (models.Answer, error) {
	loc := emailPattern.FindStringIndex(text)
	if loc == nil {
		return models.Answer{}, invalid(q, "I couldn't find an email address. Please send your name and email, e.g. Jane Doe - jane@example.com")
	}
	email := strings.ToLower(text[loc[0]:loc[1]])
	rest := text[:loc[0]] + " " + text[loc[1]:]

	var parts []string
	for _, tok := range strings.Fields(rest) {
		tok = strings.Trim(tok, nameSeparators)
		if tok != "" {
			parts = append(parts, tok)
		}
	}
	name := strings.Join(parts, " ")
	if name == "" {
		return models.Answer{}, invalid(q, "Please include your name along with your email, e.g. Jane Doe - jane@example.com")
	}
	return models.ContactAnswer(name, email), nil
}
