package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []models.DiscordMessagePayload
}

func (w *webhookRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var p models.DiscordMessagePayload
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) ||
			!assert.NoError(t, json.UnmarshalFromString(r.FormValue("payload_json"), &p)) {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		w.payloads = append(w.payloads, p)
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	}
}

func (w *webhookRecorder) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.payloads)
}

func TestDiscordNotifier_SendNotification(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	dn := NewDiscordNotifier(zerolog.Nop(), srv.Client())
	payload := FormatRescanCompleteMessage(models.RescanSummary{
		JobID: "job-1", Status: models.RescanStatusSuccess, Processed: 3, Total: 3,
	})

	require.NoError(t, dn.SendNotification(context.Background(), srv.URL, payload))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, DiscordUsername, rec.payloads[0].Username)
	assert.Equal(t, "Rescan success", rec.payloads[0].Embeds[0].Title)
}

func TestDiscordNotifier_EmptyURLIsNoop(t *testing.T) {
	dn := NewDiscordNotifier(zerolog.Nop(), nil)
	assert.NoError(t, dn.SendNotification(context.Background(), "", models.DiscordMessagePayload{}))
	assert.Error(t, dn.SendNotification(context.Background(), "::bad", models.DiscordMessagePayload{}))
}

func TestDiscordNotifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			rw.WriteHeader(http.StatusBadGateway)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dn := NewDiscordNotifier(zerolog.Nop(), srv.Client())
	dn.retryDelay = time.Millisecond

	require.NoError(t, dn.SendNotification(context.Background(), srv.URL, models.DiscordMessagePayload{Content: "x"}))
	assert.EqualValues(t, 2, calls.Load())
}

func TestDiscordNotifier_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		rw.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	dn := NewDiscordNotifier(zerolog.Nop(), srv.Client())
	dn.retryDelay = time.Millisecond

	err := dn.SendNotification(context.Background(), srv.URL, models.DiscordMessagePayload{Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.EqualValues(t, 1, calls.Load())
}

func TestDiscordSubscriber_ForwardsFindingsAndRescans(t *testing.T) {
	rec := &webhookRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	cfg := config.NewDefaultNotificationConfig()
	cfg.DiscordWebhookURL = srv.URL
	cfg.MentionRoleIDs = []string{"123"}

	bus := NewBus(8, zerolog.Nop())
	sub := NewDiscordSubscriber(cfg, NewDiscordNotifier(zerolog.Nop(), srv.Client()), zerolog.Nop())
	require.True(t, sub.Enabled())
	assert.Len(t, sub.Register(bus), 2)

	record := models.ScriptRecord{ID: 7, URL: "https://a.test/app.js", ContentHash: "abc"}
	bus.Publish(EventRecordCreated, models.RecordCreatedEvent{Record: record})
	bus.Publish(EventRecordCreated, models.RecordCreatedEvent{
		Record:   record,
		Findings: []models.Finding{{SourceSet: "tokens.json", MatchedText: "tok_1"}},
	})
	bus.Publish(EventRescanComplete, models.RescanSummary{JobID: "j", Status: models.RescanStatusCompletedWithErrors, Errors: 1})
	bus.Publish(EventStatsUpdate, models.Stats{})

	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	bus.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	titles := []string{rec.payloads[0].Embeds[0].Title, rec.payloads[1].Embeds[0].Title}
	assert.ElementsMatch(t, []string{"New script with findings", "Rescan completed-with-errors"}, titles)
	for _, p := range rec.payloads {
		if p.Embeds[0].Title == "New script with findings" {
			assert.Equal(t, "<@&123>", p.Content)
			assert.Equal(t, []string{"123"}, p.AllowedMentions.Roles)
		}
	}
}

func TestDiscordSubscriber_DisabledWithoutWebhook(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	defer bus.Close()

	sub := NewDiscordSubscriber(config.NewDefaultNotificationConfig(), NewDiscordNotifier(zerolog.Nop(), nil), zerolog.Nop())
	assert.False(t, sub.Enabled())
	assert.Nil(t, sub.Register(bus))
}

func TestSummarizeFindingsCapsList(t *testing.T) {
	findings := make([]models.Finding, MaxFindingsListed+3)
	for i := range findings {
		findings[i] = models.Finding{SourceSet: "s", MatchedText: "m"}
	}
	out := summarizeFindings(findings)
	assert.Contains(t, out, "... and 3 more")
}
