package classify

import (
	"errors"
	"testing"

	"documine/internal/domain/valueobject"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DefaultRules(t *testing.T) {
	classifier := NewDefaultClassifier()

	tests := []struct {
		name         string
		err          error
		wantCode     string
		wantCategory valueobject.ErrorCategory
		wantRetry    bool
	}{
		{
			name:         "timeout is transient",
			err:          errors.New("context deadline exceeded"),
			wantCode:     CodeTimeout,
			wantCategory: valueobject.ErrorCategoryTransient,
			wantRetry:    true,
		},
		{
			name:         "rate limit is transient",
			err:          errors.New("upstream returned 429 Too Many Requests"),
			wantCode:     CodeRateLimited,
			wantCategory: valueobject.ErrorCategoryTransient,
			wantRetry:    true,
		},
		{
			name:         "connection reset is transient",
			err:          errors.New("read tcp: connection reset by peer"),
			wantCode:     CodeConnectionFailure,
			wantCategory: valueobject.ErrorCategoryTransient,
			wantRetry:    true,
		},
		{
			name:         "bad gateway is transient",
			err:          errors.New("parsing service returned status 502: bad gateway"),
			wantCode:     CodeUpstreamError,
			wantCategory: valueobject.ErrorCategoryTransient,
			wantRetry:    true,
		},
		{
			name:         "password protected is recoverable",
			err:          errors.New("PDF is encrypted with a user password"),
			wantCode:     CodePasswordProtected,
			wantCategory: valueobject.ErrorCategoryRecoverable,
			wantRetry:    false,
		},
		{
			name:         "unsupported format is recoverable",
			err:          errors.New("unsupported file type: .dwg"),
			wantCode:     CodeUnsupportedFormat,
			wantCategory: valueobject.ErrorCategoryRecoverable,
			wantRetry:    false,
		},
		{
			name:         "corrupt file is recoverable",
			err:          errors.New("unable to parse document structure"),
			wantCode:     CodeCorruptFile,
			wantCategory: valueobject.ErrorCategoryRecoverable,
			wantRetry:    false,
		},
		{
			name:         "oversized file is recoverable",
			err:          errors.New("file exceeds maximum of 100MB"),
			wantCode:     CodeFileTooLarge,
			wantCategory: valueobject.ErrorCategoryRecoverable,
			wantRetry:    false,
		},
		{
			name:         "unrecognized error falls back to permanent unknown",
			err:          errors.New("segmentation fault in native extension"),
			wantCode:     CodeUnknown,
			wantCategory: valueobject.ErrorCategoryPermanent,
			wantRetry:    false,
		},
		{
			name:         "nil error is permanent unknown",
			err:          nil,
			wantCode:     CodeUnknown,
			wantCategory: valueobject.ErrorCategoryPermanent,
			wantRetry:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(tt.err)

			assert.Equal(t, tt.wantCode, result.Code)
			assert.Equal(t, tt.wantCategory, result.Category)
			assert.Equal(t, tt.wantRetry, result.AutoRetry)
			assert.NotEmpty(t, result.UserMessage)
			assert.NotEmpty(t, result.SuggestedAction)
		})
	}
}

func TestClassify_TransientRulesWinOverRecoverable(t *testing.T) {
	classifier := NewDefaultClassifier()

	// "timeout" appears before the recoverable patterns in rule order, so
	// mixed text retries instead of bouncing back to the user.
	result := classifier.ClassifyText("timeout while reading password metadata")

	assert.Equal(t, CodeTimeout, result.Code)
	assert.True(t, result.AutoRetry)
}

func TestClassify_MatchingIsCaseInsensitive(t *testing.T) {
	classifier := NewDefaultClassifier()

	result := classifier.ClassifyText("Connection REFUSED by host")

	assert.Equal(t, CodeConnectionFailure, result.Code)
}

func TestNewClassifier_RejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{
			name: "unknown category",
			rule: Rule{Code: "X", Category: "fatal", Patterns: []string{"boom"}},
		},
		{
			name: "no patterns",
			rule: Rule{Code: "X", Category: "transient"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier([]Rule{tt.rule})
			require.Error(t, err)
		})
	}
}

func TestNewClassifierWithOverrides_OverridesEvaluateFirst(t *testing.T) {
	yamlRules := []byte(`
rules:
  - code: VENDOR_MAINTENANCE
    category: transient
    patterns:
      - "scheduled maintenance"
    user_message: "The processing service is under maintenance."
    suggested_action: "The document will be retried automatically."
`)

	classifier, err := NewClassifierWithOverrides(yamlRules)
	require.NoError(t, err)

	result := classifier.ClassifyText("vendor is down for scheduled maintenance")
	assert.Equal(t, "VENDOR_MAINTENANCE", result.Code)
	assert.True(t, result.AutoRetry)

	// Defaults remain as the safety net behind the overrides.
	result = classifier.ClassifyText("connection refused")
	assert.Equal(t, CodeConnectionFailure, result.Code)
}

func TestNewClassifierWithOverrides_RejectsMalformedYAML(t *testing.T) {
	_, err := NewClassifierWithOverrides([]byte("rules: [not valid"))
	require.Error(t, err)
}

func TestStaleTimeout(t *testing.T) {
	result := StaleTimeout()

	assert.Equal(t, CodeStaleTimeout, result.Code)
	assert.Equal(t, valueobject.ErrorCategoryTransient, result.Category)
	assert.True(t, result.AutoRetry)
}

func TestRetriesExhausted(t *testing.T) {
	result := RetriesExhausted()

	assert.Equal(t, CodeMaxRetriesExceeded, result.Code)
	assert.Equal(t, valueobject.ErrorCategoryPermanent, result.Category)
	assert.False(t, result.AutoRetry)
}

func TestActionForCode(t *testing.T) {
	classifier := NewDefaultClassifier()

	assert.Equal(t,
		"Remove the password protection and upload the document again.",
		classifier.ActionForCode(CodePasswordProtected))
	assert.Equal(t, StaleTimeout().SuggestedAction, classifier.ActionForCode(CodeStaleTimeout))
	assert.Equal(t, RetriesExhausted().SuggestedAction, classifier.ActionForCode(CodeMaxRetriesExceeded))
	assert.NotEmpty(t, classifier.ActionForCode("NO_SUCH_CODE"))
}
