package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"documine/internal/domain/valueobject"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamProgress_CompletedJobEndsStream(t *testing.T) {
	mux, store := newTestMux(t)
	registered := registerDocument(t, mux)
	ctx := context.Background()

	job, err := store.JobRepository().ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, job.Complete())
	require.NoError(t, store.JobRepository().UpdateWithStatusCheck(ctx, job, valueobject.JobStatusProcessing))

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/"+registered.ID.String()+"/progress", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))

	body := recorder.Body.String()
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, `"status":"completed"`)
	assert.Contains(t, body, `"progress":100`)
}

func TestStreamProgress_PermanentFailureEndsStream(t *testing.T) {
	mux, store := newTestMux(t)
	registered := registerDocument(t, mux)
	ctx := context.Background()

	job, err := store.JobRepository().ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, job.Fail(valueobject.ErrorCategoryPermanent, "UNKNOWN", "unexpected"))
	require.NoError(t, store.JobRepository().UpdateWithStatusCheck(ctx, job, valueobject.JobStatusProcessing))

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/"+registered.ID.String()+"/progress", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, `"status":"failed"`)
	assert.Contains(t, body, `"error_category":"permanent"`)
}

func TestStreamProgress_UnknownDocument(t *testing.T) {
	mux, _ := newTestMux(t)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString()+"/progress", nil))

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestStreamProgress_InvalidID(t *testing.T) {
	mux, _ := newTestMux(t)

	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid/progress", nil))

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
