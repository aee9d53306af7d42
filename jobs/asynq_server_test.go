package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerRoutesRegisteredTasks(t *testing.T) {
	mr := miniredis.RunT(t)
	var handled []string
	record := func(_ context.Context, task *asynq.Task) error {
		handled = append(handled, task.Type())
		return nil
	}

	worker, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Handlers: []TaskHandler{
			{Type: TaskQueryWarmup, Handler: record},
			{Type: TaskQueryInvalidate, Handler: record},
			{Type: "", Handler: record},
		},
	})
	require.NoError(t, err)

	warmup, err := NewWarmupTask("sess-1")
	require.NoError(t, err)
	require.NoError(t, worker.Mux().ProcessTask(context.Background(), warmup))
	invalidate, err := NewInvalidateTask("menus")
	require.NoError(t, err)
	require.NoError(t, worker.Mux().ProcessTask(context.Background(), invalidate))
	assert.Equal(t, []string{TaskQueryWarmup, TaskQueryInvalidate}, handled)

	err = worker.Mux().ProcessTask(context.Background(), asynq.NewTask("mail:send", nil))
	assert.Error(t, err)
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

func TestEnqueueInvalidateRequiresResource(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.EnqueueInvalidate(context.Background(), "")
	assert.Error(t, err)
}

func TestEnqueueWarmupNamesTheSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.EnqueueWarmup(context.Background(), "")
	assert.Error(t, err)

	info, err := client.EnqueueWarmup(context.Background(), "sess-1", "boards")
	require.NoError(t, err)
	var payload WarmupPayload
	require.NoError(t, json.Unmarshal(info.Payload, &payload))
	assert.Equal(t, WarmupPayload{Session: "sess-1", Resources: []string{"boards"}}, payload)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"scheduled":0,"retry":0}`, rec.Body.String())
}
