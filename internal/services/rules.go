package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// DefaultBootstrapMinLength is the message length from which a first message is treated as an application
const DefaultBootstrapMinLength = 40

// triggerPrecedence is the fixed order in which trigger sets are checked
var triggerPrecedence = []models.FlowType{models.FlowHuman, models.FlowSupport, models.FlowHighTicket}

// Single-word triggers are commands and only match a message consisting of that word.
// Multi-word triggers match anywhere on word boundaries.
var (
	defaultHumanTriggers = []string{
		"human", "agent", "operator",
		"talk to a human", "speak to a human", "human agent", "live agent", "real person",
		"talk to someone", "speak to someone",
	}
	defaultSupportTriggers = []string{
		"support", "help",
		"need support", "customer support", "need help", "report a problem", "report an issue",
		"file a complaint", "not working for me", "something is broken",
	}
	defaultHighTicketTriggers = []string{
		"partnership", "invest", "sponsorship",
		"discuss a partnership", "explore a partnership", "partner with you", "partner with us",
		"like to invest", "want to invest", "investment opportunity", "enterprise plan",
		"sponsorship opportunity",
	}
	defaultBootstrapKeywords = []string{"protocol", "project", "founder", "startup", "token", "dao", "defi", "grant", "launch", "build", "building"}
)

// RoutingRules is the immutable keyword configuration used by FlowRouter.
// Build it with NewRoutingRules or DefaultRoutingRules; the zero value matches nothing.
type RoutingRules struct {
	triggers           map[models.FlowType][]string
	bootstrapKeywords  []string
	bootstrapMinLength int
}

// RoutingConfig is the raw keyword configuration, usually loaded from config
type RoutingConfig struct {
	HumanTriggers      []string
	SupportTriggers    []string
	HighTicketTriggers []string
	BootstrapKeywords  []string
	BootstrapMinLength int
}

// DefaultRoutingRules returns the built-in trigger tables
func DefaultRoutingRules() RoutingRules {
	return NewRoutingRules(RoutingConfig{})
}

// NewRoutingRules normalises cfg into RoutingRules. Empty fields fall back to the defaults.
func NewRoutingRules(cfg RoutingConfig) RoutingRules {
	pick := func(list, fallback []string) []string {
		if len(list) == 0 {
			list = fallback
		}
		out := make([]string, 0, len(list))
		for _, phrase := range list {
			if p := normalizeText(phrase); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	minLen := cfg.BootstrapMinLength
	if minLen <= 0 {
		minLen = DefaultBootstrapMinLength
	}

	return RoutingRules{
		triggers: map[models.FlowType][]string{
			models.FlowHuman:      pick(cfg.HumanTriggers, defaultHumanTriggers),
			models.FlowSupport:    pick(cfg.SupportTriggers, defaultSupportTriggers),
			models.FlowHighTicket: pick(cfg.HighTicketTriggers, defaultHighTicketTriggers),
		},
		bootstrapKeywords:  pick(cfg.BootstrapKeywords, defaultBootstrapKeywords),
		bootstrapMinLength: minLen,
	}
}

// MatchTrigger returns the highest-precedence flow whose trigger phrase appears in text
func (r RoutingRules) MatchTrigger(text string) (models.FlowType, bool) {
	normalized := normalizeText(text)
	padded := " " + normalized + " "
	for _, flow := range triggerPrecedence {
		for _, phrase := range r.triggers[flow] {
			if !strings.Contains(phrase, " ") {
				if normalized == phrase {
					return flow, true
				}
				continue
			}
			if strings.Contains(padded, " "+phrase+" ") {
				return flow, true
			}
		}
	}
	return "", false
}

// BootstrapFlow picks the initial flow for a user with no active session
func (r RoutingRules) BootstrapFlow(text string) models.FlowType {
	padded := " " + normalizeText(text) + " "
	for _, kw := range r.bootstrapKeywords {
		if strings.Contains(padded, " "+kw+" ") {
			return models.FlowEightQuestion
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= r.bootstrapMinLength {
		return models.FlowEightQuestion
	}
	return models.FlowSupport
}

// normalizeText lowercases text and turns every run of non-alphanumerics into one space
func normalizeText(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
