package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultRetryAttempts = 2
	defaultRetryDelay    = 5 * time.Second
)

// DiscordNotifier handles sending notifications to a Discord webhook.
type DiscordNotifier struct {
	logger        zerolog.Logger
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(logger zerolog.Logger, httpClient *http.Client) *DiscordNotifier {
	moduleLogger := logger.With().Str("component", "DiscordNotifier").Logger()

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	return &DiscordNotifier{
		logger:        moduleLogger,
		httpClient:    httpClient,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

// SendNotification posts payload to webhookURL, retrying transport failures and 5xx/429 responses.
func (dn *DiscordNotifier) SendNotification(ctx context.Context, webhookURL string, payload models.DiscordMessagePayload) error {
	if webhookURL == "" {
		dn.logger.Debug().Msg("Webhook URL is empty. Skipping Discord notification.")
		return nil
	}

	if _, errURL := url.ParseRequestURI(webhookURL); errURL != nil {
		return fmt.Errorf("invalid DiscordWebhookURL for send: %w", errURL)
	}

	body, contentType, err := encodePayload(payload)
	if err != nil {
		dn.logger.Error().Err(err).Msg("Failed to encode Discord payload")
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= dn.retryAttempts; attempt++ {
		if attempt > 0 {
			if err := common.WaitWithCancellation(ctx, dn.retryDelay); err != nil {
				return err
			}
		}
		retry, err := dn.post(ctx, webhookURL, body, contentType)
		if err == nil {
			dn.logger.Debug().Int("attempt", attempt+1).Msg("Discord notification sent successfully.")
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		dn.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Discord notification failed, retrying")
	}
	dn.logger.Error().Err(lastErr).Msg("Discord notification failed")
	return lastErr
}

func (dn *DiscordNotifier) post(ctx context.Context, webhookURL string, body []byte, contentType string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := dn.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("failed to send discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, fmt.Errorf("discord notification failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return false, nil
}

func encodePayload(payload models.DiscordMessagePayload) ([]byte, string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal discord payload: %w", err)
	}
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if err := writer.WriteField("payload_json", string(payloadJSON)); err != nil {
		return nil, "", fmt.Errorf("failed to write payload_json to multipart: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}
