package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/atelier-admin/atelier/internal/query"
)

const recordTimeout = 3 * time.Second

// Subscribe records every successful mutation published on bus. The returned
// function stops recording.
func Subscribe(bus *query.Bus, service *Service, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	return bus.Subscribe(func(ev query.Event) {
		if ev.Kind != query.EventMutationSucceeded || ev.Mutation == nil {
			return
		}
		m := ev.Mutation
		entry := Entry{
			At:       ev.At,
			Actor:    m.Actor,
			Action:   m.Action,
			Resource: m.Resource,
			RecordID: m.ID,
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := service.Record(ctx, entry); err != nil {
			logger.Warn("record audit entry",
				slog.String("resource", m.Resource),
				slog.String("action", m.Action),
				slog.Any("error", err),
			)
		}
	})
}
