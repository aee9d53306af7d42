package query

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a Result.
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Result is the observable state of one key. While loading, Data keeps the
// previous payload (HasData tells whether there is one).
type Result[T any] struct {
	Key       Key
	Status    Status
	Data      T
	HasData   bool
	Err       error
	Stale     bool
	UpdatedAt time.Time
}

// Loading reports whether the result is still waiting on the backend.
func (r Result[T]) Loading() bool { return r.Status == StatusLoading }

// Failed reports whether the last load failed.
func (r Result[T]) Failed() bool { return r.Status == StatusError }

// ErrPending reports a result that had not settled when its caller stopped
// waiting.
var ErrPending = errors.New("query: result still loading")

// Settled returns the load error of a failed result, ErrPending while
// loading, or nil.
func (r Result[T]) Settled() error {
	switch r.Status {
	case StatusError:
		return r.Err
	case StatusLoading:
		return ErrPending
	}
	return nil
}
