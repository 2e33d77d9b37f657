package notifier

import (
	"context"

	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
)

// LogSubscriber writes every bus event to the structured log.
type LogSubscriber struct {
	logger zerolog.Logger
}

func NewLogSubscriber(logger zerolog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger.With().Str("component", "EventLog").Logger()}
}

// Register attaches the subscriber to all events on bus.
func (l *LogSubscriber) Register(bus *Bus) *Subscription {
	return bus.Attach(AllEvents, l.Handle)
}

func (l *LogSubscriber) Handle(_ context.Context, ev Event) {
	switch p := ev.Payload.(type) {
	case models.RecordCreatedEvent:
		l.logger.Info().Str("event", ev.Name).Int64("id", p.Record.ID).Str("url", p.Record.URL).
			Int("findings", len(p.Findings)).Msg("New script recorded")
	case models.RescanProgress:
		l.logger.Debug().Str("event", ev.Name).Str("job_id", p.JobID).
			Int("processed", p.Processed).Int("total", p.Total).Msg("Rescan progress")
	case models.RescanSummary:
		l.logger.Info().Str("event", ev.Name).Str("job_id", p.JobID).Str("status", string(p.Status)).
			Int("processed", p.Processed).Int("total", p.Total).Int("errors", p.Errors).
			Dur("elapsed", p.Elapsed).Str("message", p.Message).Msg("Rescan finished")
	case models.Stats:
		l.logger.Debug().Str("event", ev.Name).Int64("requests", p.RequestsSeen).
			Int64("scripts", p.ScriptsReceived).Int64("records", p.TotalRecords).
			Int64("in_scope", p.InScopeRecords).Msg("Stats updated")
	default:
		l.logger.Debug().Str("event", ev.Name).Msg("Event")
	}
}
