package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-admin/atelier/jobs"
)

type stubQueue struct {
	sessions    []string
	warmed      [][]string
	invalidated []string
	err         error
	closed      bool
}

func (s *stubQueue) EnqueueWarmup(_ context.Context, session string, resources ...string) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sessions = append(s.sessions, session)
	s.warmed = append(s.warmed, resources)
	return &asynq.TaskInfo{ID: "w-1", Type: jobs.TaskQueryWarmup}, nil
}

func (s *stubQueue) EnqueueInvalidate(_ context.Context, resource string) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.invalidated = append(s.invalidated, resource)
	return &asynq.TaskInfo{ID: "i-1", Type: jobs.TaskQueryInvalidate}, nil
}

func (s *stubQueue) Close() error {
	s.closed = true
	return nil
}

type stubInspector struct {
	info      *asynq.QueueInfo
	scheduled []*asynq.TaskInfo
	closed    bool
}

func (s *stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, nil }

func (s *stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return s.scheduled, nil
}

func (s *stubInspector) Close() error {
	s.closed = true
	return nil
}

func run(t *testing.T, ops *JobsCLI, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(func() (*JobsCLI, error) { return ops, nil })
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWarmupCommand(t *testing.T) {
	queue := &stubQueue{}
	inspector := &stubInspector{}
	out, err := run(t, NewJobsCLIWith(queue, inspector), "warmup", "--session", "sess-1", "boards", "menus")
	require.NoError(t, err)
	assert.Equal(t, "queued query:warmup as w-1\n", out)
	assert.Equal(t, []string{"sess-1"}, queue.sessions)
	assert.Equal(t, [][]string{{"boards", "menus"}}, queue.warmed)
	assert.True(t, queue.closed)
	assert.True(t, inspector.closed)
}

func TestWarmupCommandReportsDuplicates(t *testing.T) {
	queue := &stubQueue{err: asynq.ErrDuplicateTask}
	_, err := run(t, NewJobsCLIWith(queue, &stubInspector{}), "warmup", "--session", "sess-1")
	assert.ErrorContains(t, err, "already queued")
}

func TestWarmupCommandNeedsSession(t *testing.T) {
	queue := &stubQueue{}
	_, err := run(t, NewJobsCLIWith(queue, &stubInspector{}), "warmup", "boards")
	assert.ErrorContains(t, err, "session")
	assert.Empty(t, queue.warmed)
}

func TestInvalidateCommandNeedsResource(t *testing.T) {
	queue := &stubQueue{}
	_, err := run(t, NewJobsCLIWith(queue, &stubInspector{}), "invalidate")
	require.Error(t, err)
	assert.Empty(t, queue.invalidated)

	out, err := run(t, NewJobsCLIWith(queue, &stubInspector{}), "invalidate", "ingredients")
	require.NoError(t, err)
	assert.Contains(t, out, "query:invalidate")
	assert.Equal(t, []string{"ingredients"}, queue.invalidated)
}

func TestQueueCommandJSON(t *testing.T) {
	inspector := &stubInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}}
	out, err := run(t, NewJobsCLIWith(&stubQueue{}, inspector), "queue", "--json")
	require.NoError(t, err)

	var stats QueueStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}, stats)
}

func TestQueueCommandListsScheduled(t *testing.T) {
	inspector := &stubInspector{
		info: &asynq.QueueInfo{Queue: jobs.QueueDefault},
		scheduled: []*asynq.TaskInfo{{
			ID:            "s-9",
			Type:          jobs.TaskQueryWarmup,
			NextProcessAt: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
		}},
	}
	out, err := run(t, NewJobsCLIWith(&stubQueue{}, inspector), "queue", "--scheduled", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[len(lines)-1], "s-9")
	assert.Contains(t, lines[len(lines)-1], "2025-03-12T10:00:00Z")
}

func TestCommandsFailWhenUnconfigured(t *testing.T) {
	_, err := run(t, &JobsCLI{}, "queue")
	assert.ErrorContains(t, err, "inspector not configured")

	root := NewRootCommand(func() (*JobsCLI, error) { return nil, errors.New("dial tcp: refused") })
	root.SetArgs([]string{"warmup", "--session", "sess-1"})
	root.SetOut(new(bytes.Buffer))
	assert.ErrorContains(t, root.Execute(), "refused")
}
