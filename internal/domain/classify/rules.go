package classify

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultRules returns the built-in ordered rule set. Transient
// infrastructure patterns are checked before input-shaped patterns so that,
// for example, "timeout reading file" is retried rather than bounced back
// to the user.
func DefaultRules() []Rule {
	return []Rule{
		{
			Code:     CodeTimeout,
			Category: "transient",
			Patterns: []string{
				"timeout",
				"timed out",
				"deadline exceeded",
				"context canceled",
			},
			UserMessage:     "Processing is taking longer than usual.",
			SuggestedAction: "The document will be retried automatically.",
		},
		{
			Code:     CodeRateLimited,
			Category: "transient",
			Patterns: []string{
				"rate limit",
				"too many requests",
				"429",
				"quota exceeded",
			},
			UserMessage:     "The processing service is busy right now.",
			SuggestedAction: "The document will be retried automatically.",
		},
		{
			Code:     CodeConnectionFailure,
			Category: "transient",
			Patterns: []string{
				"connection reset",
				"connection refused",
				"broken pipe",
				"no such host",
				"eof",
			},
			UserMessage:     "A temporary network problem interrupted processing.",
			SuggestedAction: "The document will be retried automatically.",
		},
		{
			Code:     CodeUpstreamError,
			Category: "transient",
			Patterns: []string{
				"502",
				"503",
				"504",
				"bad gateway",
				"service unavailable",
				"internal server error",
			},
			UserMessage:     "The processing service had a temporary problem.",
			SuggestedAction: "The document will be retried automatically.",
		},
		{
			Code:     CodePasswordProtected,
			Category: "recoverable",
			Patterns: []string{
				"password",
				"encrypted",
				"protected",
			},
			UserMessage:     "This document is password-protected and cannot be read.",
			SuggestedAction: "Remove the password protection and upload the document again.",
		},
		{
			Code:     CodeUnsupportedFormat,
			Category: "recoverable",
			Patterns: []string{
				"unsupported file type",
				"unsupported format",
				"invalid format",
				"cannot convert",
			},
			UserMessage:     "This file type is not supported.",
			SuggestedAction: "Re-save the document as a standard PDF and upload it again.",
		},
		{
			Code:     CodeCorruptFile,
			Category: "recoverable",
			Patterns: []string{
				"corrupt",
				"malformed",
				"damaged",
				"unable to parse",
			},
			UserMessage:     "This document appears to be damaged and cannot be read.",
			SuggestedAction: "Re-save the document as a standard PDF and upload it again.",
		},
		{
			Code:     CodeFileTooLarge,
			Category: "recoverable",
			Patterns: []string{
				"too large",
				"exceeds maximum",
				"file size limit",
			},
			UserMessage:     "This document is too large to process.",
			SuggestedAction: "Split the document into smaller files and upload them separately.",
		},
	}
}

// ruleFile is the on-disk YAML layout for operator-supplied rules.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes an ordered rule list from YAML. Supplied rules are
// evaluated before the built-in defaults, which remain as a safety net.
func ParseRules(data []byte) ([]Rule, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse classification rules: %w", err)
	}
	return file.Rules, nil
}

// NewClassifierWithOverrides builds a classifier from YAML rules prepended
// to the defaults.
func NewClassifierWithOverrides(data []byte) (*Classifier, error) {
	overrides, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	return NewClassifier(append(overrides, DefaultRules()...))
}
