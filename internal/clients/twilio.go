package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tryon-chat-backend/internal/config"

	"github.com/rs/zerolog/log"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioClient talks to the Twilio REST API: it resolves inbound media
// references into bytes and delivers outbound WhatsApp media messages.
type TwilioClient struct {
	httpClient *http.Client
	apiBase    string
	accountSID string
	authToken  string
	from       string
}

// NewTwilioClient creates a new Twilio client
func NewTwilioClient(cfg config.TwilioConfig) *TwilioClient {
	return &TwilioClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    twilioAPIBase,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.WhatsAppFrom,
	}
}

// Fetch downloads the media behind an inbound media URL. Twilio media URLs
// require account basic auth.
func (c *TwilioClient) Fetch(ctx context.Context, mediaRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	return data, nil
}

// SendMedia delivers an outbound media message. Delivery is fire-and-forget
// from the orchestrator's perspective; the caller only logs failures.
func (c *TwilioClient) SendMedia(ctx context.Context, to, mediaURL, body string) error {
	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", to)
	form.Set("Body", body)
	form.Set("MediaUrl", mediaURL)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("message send returned status %d: %s", resp.StatusCode, payload)
	}

	var created struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.SID != "" {
		log.Info().Str("message_sid", created.SID).Str("to", to).Msg("Sent media message")
	}
	return nil
}
