package notifier

// Event names carried on the bus
const (
	EventRecordCreated  = "record-created"
	EventRescanProgress = "rescan-progress"
	EventRescanComplete = "rescan-complete"
	EventStatsUpdate    = "stats-update"
)

// Publisher is the fire-and-forget side of the notification channel.
type Publisher interface {
	Publish(name string, payload any)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) {}
