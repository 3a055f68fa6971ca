package questions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

func singleSelect(options ...string) Question {
	return Question{ID: "pick", Type: models.QuestionSingleSelect, Options: options}
}

func multiSelect(options ...string) Question {
	return Question{ID: "many", Type: models.QuestionMultiSelect, Options: options}
}

func TestValidate_SingleSelect(t *testing.T) {
	q := singleSelect("Idea", "Prototype", "Mainnet", "Scaling")

	for _, raw := range []string{"5", "0", "abc", "", "-1", "2,3"} {
		_, err := Validate(q, raw)
		var verr *ValidationError
		require.Error(t, err, "input %q", raw)
		assert.True(t, errors.As(err, &verr), "input %q should be a validation error", raw)
		assert.Equal(t, "pick", verr.QuestionID)
	}

	answer, err := Validate(q, " 2 ")
	require.NoError(t, err)
	assert.Equal(t, models.SingleSelectAnswer("Prototype"), answer)
}

func TestValidate_MultiSelect(t *testing.T) {
	q := multiSelect("A", "B", "C")

	answer, err := Validate(q, "1, 3")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, answer.Selections)
	assert.Equal(t, models.QuestionMultiSelect, answer.Kind)

	_, err = Validate(q, "9")
	assert.Error(t, err)

	_, err = Validate(q, "none of these")
	assert.Error(t, err)
}

func TestValidate_MultiSelectDiscardsBadTokens(t *testing.T) {
	q := multiSelect("A", "B", "C")

	answer, err := Validate(q, "3;x 9,2 3")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, answer.Selections)
}

func TestValidate_ContactExtract(t *testing.T) {
	q := Question{ID: "contact", Type: models.QuestionContactExtract}

	answer, err := Validate(q, "Jane Doe - jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, answer.Contact)
	assert.Equal(t, "Jane Doe", answer.Contact.Name)
	assert.Equal(t, "jane@example.com", answer.Contact.Email)

	answer, err = Validate(q, "  jane@example.com   --  Mary-Jane   Smith, ")
	require.NoError(t, err)
	assert.Equal(t, "Mary-Jane Smith", answer.Contact.Name)

	_, err = Validate(q, "no contact here")
	assert.Error(t, err)

	_, err = Validate(q, " - jane@example.com")
	assert.Error(t, err, "a name is required")
}

func TestValidate_FreeText(t *testing.T) {
	q := Question{ID: "summary", Type: models.QuestionFreeText, Validation: Validation{MinLength: 10}}

	_, err := Validate(q, "   short    ")
	assert.Error(t, err)

	answer, err := Validate(q, "  a long enough answer  ")
	require.NoError(t, err)
	assert.Equal(t, "a long enough answer", answer.Text)

	noRule := Question{ID: "name", Type: models.QuestionFreeText}
	_, err = Validate(noRule, "   ")
	assert.Error(t, err, "blank answers never pass")
}
