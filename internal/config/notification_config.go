package config

// NotificationConfig defines configuration for notifications
type NotificationConfig struct {
	DiscordWebhookURL      string   `json:"discord_webhook_url,omitempty" yaml:"discord_webhook_url,omitempty" validate:"omitempty,url"`
	MentionRoleIDs         []string `json:"mention_role_ids,omitempty" yaml:"mention_role_ids,omitempty"`
	NotifyOnFindings       bool     `json:"notify_on_findings" yaml:"notify_on_findings"`
	NotifyOnRescanComplete bool     `json:"notify_on_rescan_complete" yaml:"notify_on_rescan_complete"`
	EventBuffer            int      `json:"event_buffer,omitempty" yaml:"event_buffer,omitempty" validate:"min=1"`
}

// NewDefaultNotificationConfig creates default notification configuration
func NewDefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		MentionRoleIDs:         []string{},
		NotifyOnFindings:       true,
		NotifyOnRescanComplete: true,
		EventBuffer:            DefaultNotificationEventBuffer,
	}
}
