package questions

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

func TestDefaultBank(t *testing.T) {
	b := DefaultBank()
	require.Equal(t, QuestionCount, b.Len())

	for i := 0; i < b.Len(); i++ {
		q, ok := b.At(i)
		require.True(t, ok)
		assert.Equal(t, i, q.Ordinal)
	}

	_, ok := b.At(QuestionCount)
	assert.False(t, ok)

	last, _ := b.At(QuestionCount - 1)
	assert.Equal(t, models.QuestionContactExtract, last.Type)
}

func TestBank_AtReturnsCopy(t *testing.T) {
	b := DefaultBank()
	q, _ := b.At(2)
	q.Options[0] = "mutated"

	again, _ := b.At(2)
	assert.NotEqual(t, "mutated", again.Options[0])
}

func TestNewBank_Rejects(t *testing.T) {
	_, err := NewBank(defaultQuestions[:3])
	assert.True(t, errors.Is(err, ErrInvalidCatalog))

	broken := DefaultBank().All()
	broken[3].Options = nil
	_, err = NewBank(broken)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))

	reordered := DefaultBank().All()
	reordered[0].Ordinal = 5
	_, err = NewBank(reordered)
	assert.True(t, errors.Is(err, ErrInvalidCatalog))
}

const yamlCatalog = `
questions:
  - {id: q0, ordinal: 0, prompt: "Name?", type: free_text, validation: {min_length: 2}}
  - {id: q1, ordinal: 1, prompt: "About?", type: free_text}
  - {id: q2, ordinal: 2, prompt: "Stage?", type: single_select, options: [A, B]}
  - {id: q3, ordinal: 3, prompt: "Tags?", type: multi_select, options: [X, Y, Z]}
  - {id: q4, ordinal: 4, prompt: "Team?", type: single_select, options: [S, M]}
  - {id: q5, ordinal: 5, prompt: "Money?", type: single_select, options: [None, Some]}
  - {id: q6, ordinal: 6, prompt: "Help?", type: multi_select, options: [T, G]}
  - {id: q7, ordinal: 7, prompt: "Contact?", type: contact_extract}
`

func TestLoadBank(t *testing.T) {
	b, err := LoadBank(strings.NewReader(yamlCatalog))
	require.NoError(t, err)
	require.Equal(t, 8, b.Len())

	q, _ := b.At(0)
	assert.Equal(t, 2, q.Validation.MinLength)

	q, _ = b.At(3)
	assert.Equal(t, []string{"X", "Y", "Z"}, q.Options)

	_, err = LoadBank(strings.NewReader("questions: [{id: only}]"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	b := DefaultBank()
	q, _ := b.At(2)

	out := Render(q, b.Len())
	assert.Contains(t, out, "Question 3 of 8")
	assert.Contains(t, out, q.Prompt)
	assert.Contains(t, out, "1. Idea")
	assert.Contains(t, out, "4. Scaling")

	retry := RenderRetry(q, b.Len(), &ValidationError{QuestionID: q.ID, Message: "Pick a number."})
	assert.True(t, strings.HasPrefix(retry, "⚠️ Pick a number."))
	assert.Contains(t, retry, out)
}

func TestSummary(t *testing.T) {
	b := DefaultBank()
	answers := models.Answers{
		"contact":      models.ContactAnswer("Jane Doe", "jane@example.com"),
		"project_name": models.FreeTextAnswer("Orbit"),
	}

	out := Summary(b, answers)
	assert.Equal(t, "• project_name: Orbit\n• contact: Jane Doe <jane@example.com>", out)
}
