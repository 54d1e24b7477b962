// Package classify maps raw failure text from pipeline stages onto the
// closed transient / recoverable / permanent taxonomy that governs retry
// eligibility and user messaging.
//
// Classification is an ordered first-match-wins rule list. Matching raw
// vendor error text is inherently fragile, so the rule set is data-driven:
// built-in defaults cover the known failure modes and an operator-supplied
// YAML file can extend or reorder them without a code change. Unmatched
// errors always fall through to permanent/UNKNOWN — an unrecognized error
// must never be assumed transient, or a retry storm follows.
package classify

import (
	"strings"

	"documine/internal/domain/valueobject"
)

// Stable error codes produced by the built-in rule set.
const (
	CodeTimeout           = "TIMEOUT"
	CodeRateLimited       = "RATE_LIMITED"
	CodeConnectionFailure = "CONNECTION_FAILURE"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodePasswordProtected = "PASSWORD_PROTECTED"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeCorruptFile       = "CORRUPT_FILE"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeUnknown           = "UNKNOWN"

	// CodeStaleTimeout is the synthetic cause attached by the watchdog when
	// it reaps a job stuck in processing.
	CodeStaleTimeout = "STALE_TIMEOUT"
	// CodeMaxRetriesExceeded replaces the original transient code once the
	// retry budget is exhausted.
	CodeMaxRetriesExceeded = "MAX_RETRIES_EXCEEDED"
)

// Classification is the outcome of classifying a raw stage error.
type Classification struct {
	Category        valueobject.ErrorCategory
	Code            string
	UserMessage     string
	SuggestedAction string
	AutoRetry       bool
}

// Rule matches raw error text against a set of case-insensitive substring
// patterns and yields a classification. First matching rule wins.
type Rule struct {
	Code            string   `yaml:"code"`
	Category        string   `yaml:"category"`
	Patterns        []string `yaml:"patterns"`
	UserMessage     string   `yaml:"user_message"`
	SuggestedAction string   `yaml:"suggested_action"`
}

// Classifier evaluates an ordered rule list with a mandatory fallback.
type Classifier struct {
	rules []compiledRule
}

type compiledRule struct {
	classification Classification
	patterns       []string
}

// NewClassifier creates a classifier from an ordered rule list. Rules with
// an invalid category or no patterns are rejected.
func NewClassifier(rules []Rule) (*Classifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		category, err := valueobject.NewErrorCategory(rule.Category)
		if err != nil {
			return nil, err
		}
		if len(rule.Patterns) == 0 {
			return nil, &InvalidRuleError{Code: rule.Code, Reason: "rule has no patterns"}
		}

		patterns := make([]string, len(rule.Patterns))
		for i, p := range rule.Patterns {
			patterns[i] = strings.ToLower(p)
		}

		compiled = append(compiled, compiledRule{
			classification: Classification{
				Category:        category,
				Code:            rule.Code,
				UserMessage:     rule.UserMessage,
				SuggestedAction: rule.SuggestedAction,
				AutoRetry:       category.AutoRetryable(),
			},
			patterns: patterns,
		})
	}
	return &Classifier{rules: compiled}, nil
}

// NewDefaultClassifier creates a classifier with the built-in rule set.
func NewDefaultClassifier() *Classifier {
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		// Built-in rules are validated by tests; this cannot happen at runtime.
		panic("classify: invalid built-in rules: " + err.Error())
	}
	return c
}

// Classify maps an error onto the taxonomy. A nil error or never-seen error
// text classifies as permanent/UNKNOWN with auto-retry disabled.
func (c *Classifier) Classify(err error) Classification {
	if err == nil {
		return unknownClassification()
	}
	return c.ClassifyText(err.Error())
}

// ClassifyText classifies raw error text directly.
func (c *Classifier) ClassifyText(raw string) Classification {
	lowered := strings.ToLower(raw)
	for _, rule := range c.rules {
		for _, pattern := range rule.patterns {
			if strings.Contains(lowered, pattern) {
				return rule.classification
			}
		}
	}
	return unknownClassification()
}

func unknownClassification() Classification {
	return Classification{
		Category:        valueobject.ErrorCategoryPermanent,
		Code:            CodeUnknown,
		UserMessage:     "Something went wrong while processing this document.",
		SuggestedAction: "Please contact support if the problem persists.",
		AutoRetry:       false,
	}
}

// ActionForCode returns the suggested user action for a known error code,
// including the synthetic watchdog and retry-exhaustion codes. Unknown codes
// get the fallback action.
func (c *Classifier) ActionForCode(code string) string {
	switch code {
	case CodeStaleTimeout:
		return StaleTimeout().SuggestedAction
	case CodeMaxRetriesExceeded:
		return RetriesExhausted().SuggestedAction
	}
	for _, rule := range c.rules {
		if rule.classification.Code == code {
			return rule.classification.SuggestedAction
		}
	}
	return unknownClassification().SuggestedAction
}

// StaleTimeout returns the synthetic classification the watchdog attaches
// to reaped jobs. The category is transient: a stuck worker is an
// infrastructure symptom, and a fresh attempt is eligible for auto-retry.
func StaleTimeout() Classification {
	return Classification{
		Category:        valueobject.ErrorCategoryTransient,
		Code:            CodeStaleTimeout,
		UserMessage:     "Processing took longer than expected and was stopped.",
		SuggestedAction: "The document will be retried automatically.",
		AutoRetry:       true,
	}
}

// RetriesExhausted escalates a transient classification to permanent after
// the retry budget is spent.
func RetriesExhausted() Classification {
	return Classification{
		Category:        valueobject.ErrorCategoryPermanent,
		Code:            CodeMaxRetriesExceeded,
		UserMessage:     "Processing failed repeatedly and has been stopped.",
		SuggestedAction: "Please contact support.",
		AutoRetry:       false,
	}
}

// InvalidRuleError reports a malformed classification rule.
type InvalidRuleError struct {
	Code   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return "invalid classification rule " + e.Code + ": " + e.Reason
}
