package notifier

import (
	"fmt"
	"strings"
	"time"
)

// buildMentions creates mention strings for Discord role IDs
func buildMentions(roleIDs []string) string {
	if len(roleIDs) == 0 {
		return ""
	}
	var mentions []string
	for _, roleID := range roleIDs {
		mentions = append(mentions, fmt.Sprintf("<@&%s>", roleID))
	}
	return strings.Join(mentions, " ")
}

// truncateString truncates a string to maxLength with ellipsis
func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength-3]) + "..."
}

// formatDuration formats duration truncated to milliseconds
func formatDuration(d time.Duration) string {
	return d.Truncate(time.Millisecond).String()
}
