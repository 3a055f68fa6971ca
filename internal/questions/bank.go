// Package questions holds the intake question catalog, answer validation and question rendering.
package questions

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// QuestionCount is the fixed length of the intake catalog
const QuestionCount = 8

// Validation holds the per-question validation rule
type Validation struct {
	MinLength int `yaml:"min_length" json:"min_length,omitempty"`
}

// Question is an immutable catalog entry
type Question struct {
	ID         string              `yaml:"id" json:"id"`
	Ordinal    int                 `yaml:"ordinal" json:"ordinal"`
	Prompt     string              `yaml:"prompt" json:"prompt"`
	Type       models.QuestionType `yaml:"type" json:"type"`
	Validation Validation          `yaml:"validation" json:"validation"`
	Options    []string            `yaml:"options" json:"options,omitempty"`
}

// Bank is the ordered question catalog. It is read-only after construction.
type Bank struct {
	questions []Question
}

// ErrInvalidCatalog is returned when a catalog does not describe a usable question sequence
var ErrInvalidCatalog = errors.New("invalid question catalog")

// NewBank validates and copies the given questions into a Bank
func NewBank(qs []Question) (*Bank, error) {
	if len(qs) != QuestionCount {
		return nil, fmt.Errorf("%w: expected %d questions, got %d", ErrInvalidCatalog, QuestionCount, len(qs))
	}

	seen := make(map[string]bool, len(qs))
	copied := make([]Question, len(qs))
	for i, q := range qs {
		switch {
		case q.ID == "":
			return nil, fmt.Errorf("%w: question %d has no id", ErrInvalidCatalog, i)
		case seen[q.ID]:
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidCatalog, q.ID)
		case q.Ordinal != i:
			return nil, fmt.Errorf("%w: question %q has ordinal %d at position %d", ErrInvalidCatalog, q.ID, q.Ordinal, i)
		case !q.Type.Valid():
			return nil, fmt.Errorf("%w: question %q has unknown type %q", ErrInvalidCatalog, q.ID, q.Type)
		case q.Prompt == "":
			return nil, fmt.Errorf("%w: question %q has no prompt", ErrInvalidCatalog, q.ID)
		}
		isSelect := q.Type == models.QuestionSingleSelect || q.Type == models.QuestionMultiSelect
		if isSelect && len(q.Options) == 0 {
			return nil, fmt.Errorf("%w: select question %q has no options", ErrInvalidCatalog, q.ID)
		}
		seen[q.ID] = true

		q.Options = append([]string(nil), q.Options...)
		copied[i] = q
	}

	return &Bank{questions: copied}, nil
}

// DefaultBank returns the built-in catalog
func DefaultBank() *Bank {
	b, err := NewBank(defaultQuestions)
	if err != nil {
		panic(err)
	}
	return b
}

// LoadBank reads a YAML catalog of the form `questions: [...]`
func LoadBank(r io.Reader) (*Bank, error) {
	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse question catalog: %w", err)
	}
	return NewBank(doc.Questions)
}

// Len returns the number of questions
func (b *Bank) Len() int {
	return len(b.questions)
}

// At returns the question at the given step
func (b *Bank) At(step int) (Question, bool) {
	if step < 0 || step >= len(b.questions) {
		return Question{}, false
	}
	q := b.questions[step]
	q.Options = append([]string(nil), q.Options...)
	return q, true
}

// All returns a copy of the catalog
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	for i := range b.questions {
		out[i], _ = b.At(i)
	}
	return out
}

var defaultQuestions = []Question{
	{
		ID:         "project_name",
		Ordinal:    0,
		Prompt:     "What's the name of your project?",
		Type:       models.QuestionFreeText,
		Validation: Validation{MinLength: 2},
	},
	{
		ID:         "project_summary",
		Ordinal:    1,
		Prompt:     "In a few sentences, what does your project do and who is it for?",
		Type:       models.QuestionFreeText,
		Validation: Validation{MinLength: 20},
	},
	{
		ID:      "stage",
		Ordinal: 2,
		Prompt:  "What stage is your project at?",
		Type:    models.QuestionSingleSelect,
		Options: []string{"Idea", "Prototype / testnet", "Live on mainnet", "Scaling"},
	},
	{
		ID:      "category",
		Ordinal: 3,
		Prompt:  "Which categories best describe your project?",
		Type:    models.QuestionMultiSelect,
		Options: []string{"DeFi", "Infrastructure", "Gaming", "NFTs / Creator economy", "DAO / Governance", "Other"},
	},
	{
		ID:      "team_size",
		Ordinal: 4,
		Prompt:  "How big is your team today?",
		Type:    models.QuestionSingleSelect,
		Options: []string{"Solo founder", "2-5", "6-15", "16+"},
	},
	{
		ID:      "funding",
		Ordinal: 5,
		Prompt:  "How is the project funded so far?",
		Type:    models.QuestionSingleSelect,
		Options: []string{"Bootstrapped", "Pre-seed", "Seed", "Series A or later"},
	},
	{
		ID:      "support_needed",
		Ordinal: 6,
		Prompt:  "Where would you like our help?",
		Type:    models.QuestionMultiSelect,
		Options: []string{"Technical", "Go-to-market", "Fundraising", "Legal / Compliance", "Community"},
	},
	{
		ID:      "contact",
		Ordinal: 7,
		Prompt:  "Last one: what's your name and email? (e.g. Jane Doe - jane@example.com)",
		Type:    models.QuestionContactExtract,
	},
}
