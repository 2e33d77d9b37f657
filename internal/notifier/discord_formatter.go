package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/models"
)

// FormatRecordCreatedMessage builds the embed announcing a new script with findings.
func FormatRecordCreatedMessage(ev models.RecordCreatedEvent, mentionRoleIDs []string) models.DiscordMessagePayload {
	embed := NewDiscordEmbedBuilder().
		WithTitle("New script with findings").
		WithDescription(fmt.Sprintf("%d pattern match(es) in a newly captured script.", len(ev.Findings))).
		WithColor(WarningEmbedColor).
		WithTimestamp(ev.Record.CreatedAt).
		AddField("URL", ev.Record.URL, false).
		AddField("Record", fmt.Sprintf("#%d", ev.Record.ID), true).
		AddField("Source map", fmt.Sprintf("%t", ev.Record.HasSourceMap), true).
		AddField("Findings", summarizeFindings(ev.Findings), false).
		WithFooter("hash " + ev.Record.ContentHash).
		Build()

	return NewDiscordMessagePayloadBuilder().
		WithUsername(DiscordUsername).
		WithContent(buildMentions(mentionRoleIDs)).
		WithRoleMentions(mentionRoleIDs).
		AddEmbed(embed).
		Build()
}

// FormatRescanCompleteMessage builds the embed summarizing a finished rescan job.
func FormatRescanCompleteMessage(summary models.RescanSummary) models.DiscordMessagePayload {
	color := SuccessEmbedColor
	switch summary.Status {
	case models.RescanStatusCompletedWithErrors:
		color = WarningEmbedColor
	case models.RescanStatusError:
		color = ErrorEmbedColor
	}

	builder := NewDiscordEmbedBuilder().
		WithTitle("Rescan " + string(summary.Status)).
		WithColor(color).
		WithTimestamp(time.Now()).
		AddField("Processed", fmt.Sprintf("%d / %d", summary.Processed, summary.Total), true).
		AddField("Errors", fmt.Sprintf("%d", summary.Errors), true).
		AddField("Duration", formatDuration(summary.Elapsed), true).
		WithFooter("job " + summary.JobID)
	if summary.Message != "" {
		builder.WithDescription(summary.Message)
	}

	return NewDiscordMessagePayloadBuilder().
		WithUsername(DiscordUsername).
		AddEmbed(builder.Build()).
		Build()
}

func summarizeFindings(findings []models.Finding) string {
	var sb strings.Builder
	for i, f := range findings {
		if i == MaxFindingsListed {
			fmt.Fprintf(&sb, "... and %d more", len(findings)-MaxFindingsListed)
			break
		}
		fmt.Fprintf(&sb, "`%s` %s\n", f.SourceSet, truncateString(f.MatchedText, 80))
	}
	return sb.String()
}
