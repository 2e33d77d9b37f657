package notifier

import (
	"context"

	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
)

// DiscordSubscriber forwards selected bus events to a Discord webhook.
type DiscordSubscriber struct {
	cfg      config.NotificationConfig
	notifier *DiscordNotifier
	logger   zerolog.Logger
}

// NewDiscordSubscriber creates a subscriber; it stays inert when no webhook URL is configured.
func NewDiscordSubscriber(cfg config.NotificationConfig, dn *DiscordNotifier, logger zerolog.Logger) *DiscordSubscriber {
	return &DiscordSubscriber{
		cfg:      cfg,
		notifier: dn,
		logger:   logger.With().Str("component", "DiscordSubscriber").Logger(),
	}
}

func (d *DiscordSubscriber) Enabled() bool {
	return d.cfg.DiscordWebhookURL != "" && d.notifier != nil
}

// Register attaches the subscriber to the events it cares about.
func (d *DiscordSubscriber) Register(bus *Bus) []*Subscription {
	if !d.Enabled() {
		d.logger.Debug().Msg("Discord webhook not configured, notifications disabled")
		return nil
	}
	var subs []*Subscription
	if d.cfg.NotifyOnFindings {
		subs = append(subs, bus.Attach(EventRecordCreated, d.Handle))
	}
	if d.cfg.NotifyOnRescanComplete {
		subs = append(subs, bus.Attach(EventRescanComplete, d.Handle))
	}
	return subs
}

func (d *DiscordSubscriber) Handle(ctx context.Context, ev Event) {
	var payload models.DiscordMessagePayload
	switch p := ev.Payload.(type) {
	case models.RecordCreatedEvent:
		if len(p.Findings) == 0 {
			return
		}
		payload = FormatRecordCreatedMessage(p, d.cfg.MentionRoleIDs)
	case models.RescanSummary:
		payload = FormatRescanCompleteMessage(p)
	default:
		return
	}
	if err := d.notifier.SendNotification(ctx, d.cfg.DiscordWebhookURL, payload); err != nil {
		d.logger.Error().Err(err).Str("event", ev.Name).Msg("Failed to deliver Discord notification")
	}
}
