package app

import "strings"

type Intent string

const (
	IntentFullDocument       Intent = "full_document"
	IntentQuestionExtraction Intent = "question_extraction"
	IntentQA                 Intent = "qa"
)

// IntentRule maps phrase markers onto an intent. Rules are evaluated in
// order and the first rule with a matching phrase wins.
type IntentRule struct {
	Intent  Intent
	Phrases []string
}

var (
	defaultFullDocumentPhrases = []string{
		"all the text",
		"full text",
		"entire pdf",
		"entire document",
		"show full document",
		"extract all text",
	}
	defaultQuestionExtractionPhrases = []string{
		"all questions",
		"extract questions",
		"interview questions",
		"mcq",
	}
)

// DefaultIntentRules returns the built-in table, full document first, with
// extra phrases appended to each rule.
func DefaultIntentRules(extraFullDocument, extraQuestionExtraction []string) []IntentRule {
	return []IntentRule{
		{Intent: IntentFullDocument, Phrases: concat(defaultFullDocumentPhrases, extraFullDocument)},
		{Intent: IntentQuestionExtraction, Phrases: concat(defaultQuestionExtractionPhrases, extraQuestionExtraction)},
	}
}

// IntentClassifier does case-insensitive substring matching; anything that
// matches no rule is IntentQA.
type IntentClassifier struct {
	rules []IntentRule
}

func NewIntentClassifier(rules []IntentRule) *IntentClassifier {
	normalized := make([]IntentRule, 0, len(rules))
	for _, r := range rules {
		phrases := make([]string, 0, len(r.Phrases))
		for _, p := range r.Phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				phrases = append(phrases, p)
			}
		}
		normalized = append(normalized, IntentRule{Intent: r.Intent, Phrases: phrases})
	}
	return &IntentClassifier{rules: normalized}
}

func (c *IntentClassifier) Classify(question string) Intent {
	q := strings.ToLower(question)
	for _, r := range c.rules {
		for _, p := range r.Phrases {
			if strings.Contains(q, p) {
				return r.Intent
			}
		}
	}
	return IntentQA
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
