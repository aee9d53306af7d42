package jobs

import (
	"encoding/json"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQueryWarmup loads the first list page of each resource into the
	// shared query store on behalf of a freshly signed-in session.
	TaskQueryWarmup = "query:warmup"
	// TaskQueryInvalidate bumps a resource in the shared query store so every
	// console instance reloads it.
	TaskQueryInvalidate = "query:invalidate"
)

// WarmupPayload names the session to warm for and the resources to load.
// No resources means all of them.
type WarmupPayload struct {
	Session   string   `json:"session"`
	Resources []string `json:"resources,omitempty"`
}

// InvalidatePayload names the resource to invalidate.
type InvalidatePayload struct {
	Resource string `json:"resource"`
}

// NewWarmupTask constructs a warmup task for session.
func NewWarmupTask(session string, resources ...string) (*asynq.Task, error) {
	data, err := json.Marshal(WarmupPayload{Session: strings.TrimSpace(session), Resources: resources})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQueryWarmup, data), nil
}

// NewInvalidateTask constructs an invalidation task.
func NewInvalidateTask(resource string) (*asynq.Task, error) {
	data, err := json.Marshal(InvalidatePayload{Resource: strings.TrimSpace(resource)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQueryInvalidate, data), nil
}
