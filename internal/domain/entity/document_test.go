package entity

import (
	"testing"

	"documine/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	tests := []struct {
		name     string
		docName  string
		location string
		wantErr  bool
	}{
		{"valid", "policy.pdf", "tenants/a/policy.pdf", false},
		{"empty name", "", "tenants/a/policy.pdf", true},
		{"empty location", "policy.pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			document, err := NewDocument(uuid.New(), uuid.New(), tt.docName, tt.location)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valueobject.DocumentStatusUploaded, document.Status())
			assert.Nil(t, document.PageCount())
		})
	}
}

func TestDocument_Lifecycle(t *testing.T) {
	document, err := NewDocument(uuid.New(), uuid.New(), "quote.pdf", "tenants/a/quote.pdf")
	require.NoError(t, err)

	require.NoError(t, document.MarkProcessing())
	assert.Equal(t, valueobject.DocumentStatusProcessing, document.Status())

	require.NoError(t, document.MarkReady(12))
	assert.Equal(t, valueobject.DocumentStatusReady, document.Status())
	require.NotNil(t, document.PageCount())
	assert.Equal(t, 12, *document.PageCount())

	// Ready is final.
	require.Error(t, document.MarkProcessing())
	require.Error(t, document.MarkFailed())
}

func TestDocument_FailedReturnsToProcessingOnRetry(t *testing.T) {
	document, err := NewDocument(uuid.New(), uuid.New(), "quote.pdf", "tenants/a/quote.pdf")
	require.NoError(t, err)

	require.NoError(t, document.MarkProcessing())
	require.NoError(t, document.MarkFailed())
	require.NoError(t, document.MarkProcessing())
	assert.Equal(t, valueobject.DocumentStatusProcessing, document.Status())
}

func TestDocument_SetMetadata(t *testing.T) {
	document, err := NewDocument(uuid.New(), uuid.New(), "policy.pdf", "tenants/a/policy.pdf")
	require.NoError(t, err)

	document.SetMetadata(map[string]string{"document_type": "policy", "carrier": "Acme Mutual"})

	assert.Equal(t, "policy", document.Metadata()["document_type"])
	assert.Equal(t, "Acme Mutual", document.Metadata()["carrier"])
}
