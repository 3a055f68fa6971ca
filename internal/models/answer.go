package models

import (
	"fmt"
	"strings"
)

// QuestionType declares how a raw answer is validated and what shape the stored Answer has
type QuestionType string

const (
	QuestionFreeText       QuestionType = "free_text"
	QuestionSingleSelect   QuestionType = "single_select"
	QuestionMultiSelect    QuestionType = "multi_select"
	QuestionContactExtract QuestionType = "contact_extract"
)

// Valid reports whether t is a known question type
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionFreeText, QuestionSingleSelect, QuestionMultiSelect, QuestionContactExtract:
		return true
	}
	return false
}

// Contact is the name/email pair extracted from a contact answer
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Answer is a validated value stored against a question id.
// Kind selects which of Text, Selections or Contact is populated.
type Answer struct {
	Kind       QuestionType `json:"kind"`
	Text       string       `json:"text,omitempty"`
	Selections []string     `json:"selections,omitempty"`
	Contact    *Contact     `json:"contact,omitempty"`
}

// FreeTextAnswer builds a free_text answer
func FreeTextAnswer(text string) Answer {
	return Answer{Kind: QuestionFreeText, Text: text}
}

// SingleSelectAnswer builds a single_select answer holding the chosen option label
func SingleSelectAnswer(option string) Answer {
	return Answer{Kind: QuestionSingleSelect, Text: option}
}

// MultiSelectAnswer builds a multi_select answer holding the chosen option labels in order
func MultiSelectAnswer(options []string) Answer {
	selections := make([]string, len(options))
	copy(selections, options)
	return Answer{Kind: QuestionMultiSelect, Selections: selections}
}

// ContactAnswer builds a contact_extract answer
func ContactAnswer(name, email string) Answer {
	return Answer{Kind: QuestionContactExtract, Contact: &Contact{Name: name, Email: email}}
}

// String renders the answer for summaries and logs
func (a Answer) String() string {
	switch a.Kind {
	case QuestionMultiSelect:
		return strings.Join(a.Selections, ", ")
	case QuestionContactExtract:
		if a.Contact == nil {
			return ""
		}
		return fmt.Sprintf("%s <%s>", a.Contact.Name, a.Contact.Email)
	default:
		return a.Text
	}
}

// Clone returns a deep copy of the answer
func (a Answer) Clone() Answer {
	if a.Selections != nil {
		a.Selections = append([]string(nil), a.Selections...)
	}
	if a.Contact != nil {
		c := *a.Contact
		a.Contact = &c
	}
	return a
}

// Answers maps question ids to validated answers
type Answers map[string]Answer

// Clone returns a deep copy so callers can't mutate stored state
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}
