package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"documine/internal/adapter/outbound/memory"
	"documine/internal/application/dto"
	"documine/internal/application/service"
	"documine/internal/domain/valueobject"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMux wires the full route table against the in-memory store.
func newTestMux(t *testing.T) (*http.ServeMux, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	documentService := service.NewDocumentService(
		store.DocumentRepository(), store.JobRepository(), memory.NewProgressNotifier(), nil,
	)
	healthService := service.NewHealthService("test", nil)

	errorHandler := NewDefaultErrorHandler()
	registry := NewRouteRegistry()
	registry.RegisterAPIRoutes(
		NewHealthHandler(healthService),
		NewDocumentHandler(documentService, errorHandler),
		NewProgressHandler(documentService, errorHandler),
	)
	return registry.BuildServeMux(), store
}

func registerBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	payload, err := json.Marshal(dto.RegisterDocumentRequest{
		TenantID:        uuid.New(),
		UploaderID:      uuid.New(),
		Name:            "policy.pdf",
		StorageLocation: "tenants/a/policy.pdf",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(payload)
}

func registerDocument(t *testing.T, mux *http.ServeMux) dto.DocumentResponse {
	t.Helper()

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/documents", registerBody(t)))
	require.Equal(t, http.StatusAccepted, recorder.Code)

	var response dto.DocumentResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response
}

func TestRegisterDocument(t *testing.T) {
	mux, _ := newTestMux(t)

	response := registerDocument(t, mux)

	assert.Equal(t, "uploaded", response.Status)
	require.NotNil(t, response.Job)
	assert.Equal(t, "pending", response.Job.Status)
	assert.Equal(t, 1, response.Job.QueuePosition)
}

func TestRegisterDocument_Validation(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", "{"},
		{"missing name", `{"tenant_id":"` + uuid.NewString() + `","storage_location":"a/b.pdf"}`},
		{"missing storage location", `{"tenant_id":"` + uuid.NewString() + `","name":"b.pdf"}`},
		{"missing tenant", `{"name":"b.pdf","storage_location":"a/b.pdf"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString(tt.body))
			mux.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)

			var response dto.ErrorResponse
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
			assert.Equal(t, "VALIDATION_ERROR", response.Error)
		})
	}
}

func TestGetDocument(t *testing.T) {
	mux, _ := newTestMux(t)
	registered := registerDocument(t, mux)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/"+registered.ID.String(), nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var response dto.DocumentResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, registered.ID, response.ID)
	assert.Equal(t, "policy.pdf", response.Name)
}

func TestGetDocument_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil))

	require.Equal(t, http.StatusNotFound, recorder.Code)
	var response dto.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "DOCUMENT_NOT_FOUND", response.Error)
}

func TestGetDocument_InvalidID(t *testing.T) {
	mux, _ := newTestMux(t)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetJob(t *testing.T) {
	mux, _ := newTestMux(t)
	registered := registerDocument(t, mux)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/"+registered.ID.String()+"/job", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var snapshot outbound.JobSnapshot
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &snapshot))
	assert.Equal(t, registered.ID, snapshot.DocumentID)
	assert.Equal(t, "pending", snapshot.Status)
	assert.Equal(t, "queued", snapshot.Stage)
}

func TestRetryDocument_NotRetryable(t *testing.T) {
	mux, _ := newTestMux(t)
	registered := registerDocument(t, mux)

	// The job is still pending, so a retry request conflicts.
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/documents/"+registered.ID.String()+"/retry", nil))

	require.Equal(t, http.StatusConflict, recorder.Code)
	var response dto.ErrorResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "RETRY_NOT_ALLOWED", response.Error)
}

func TestRetryDocument_AfterFailure(t *testing.T) {
	mux, store := newTestMux(t)
	registered := registerDocument(t, mux)
	ctx := context.Background()

	job, err := store.JobRepository().ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, job.Fail(valueobject.ErrorCategoryRecoverable, "PASSWORD_PROTECTED", "locked"))
	require.NoError(t, store.JobRepository().UpdateWithStatusCheck(ctx, job, valueobject.JobStatusProcessing))

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/documents/"+registered.ID.String()+"/retry", nil))

	require.Equal(t, http.StatusAccepted, recorder.Code)
	var response dto.RetryDocumentResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "pending", response.Job.Status)
	assert.Equal(t, 1, response.Job.RetryCount)
}

func TestGetQueueSummary(t *testing.T) {
	mux, store := newTestMux(t)
	registered := registerDocument(t, mux)

	job, err := store.JobRepository().FindActiveByDocumentID(context.Background(), registered.ID)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	target := fmt.Sprintf("/queue/summary?job_id=%s", job.ID())
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var summary dto.QueueSummaryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalPending)
	assert.Equal(t, 1, summary.Position)
}

func TestGetQueueSummary_InvalidJobID(t *testing.T) {
	mux, _ := newTestMux(t)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/queue/summary?job_id=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetHealth(t *testing.T) {
	mux, _ := newTestMux(t)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"healthy"`)
}
