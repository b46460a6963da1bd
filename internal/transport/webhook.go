package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/theuszinp/chatbot/internal/types"
)

// WebhookTransport posts outbound messages to an external delivery
// gateway (the process that holds the actual messaging session). The
// gateway is expected to accept the payload and forward it verbatim.
type WebhookTransport struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWebhookTransport creates a transport posting to the given URL
func NewWebhookTransport(url string, logger zerolog.Logger) *WebhookTransport {
	return &WebhookTransport{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// outboundPayload is the JSON body sent to the gateway.
type outboundPayload struct {
	To        string `json:"to"`
	Text      string `json:"text,omitempty"`
	MediaKind string `json:"mediaKind,omitempty"`
	MediaRef  string `json:"mediaRef,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

func (t *WebhookTransport) SendText(to, text string) error {
	return t.post(outboundPayload{To: to, Text: text})
}

func (t *WebhookTransport) SendContent(to string, content types.Content) error {
	if !content.IsMedia() {
		return t.SendText(to, content.Text)
	}
	return t.post(outboundPayload{
		To:        to,
		Text:      content.Text,
		MediaKind: string(content.Media.Kind),
		MediaRef:  content.Media.Ref,
		Caption:   content.Media.Caption,
	})
}

func (t *WebhookTransport) post(payload outboundPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbound payload: %w", err)
	}

	resp, err := t.httpClient.Post(t.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("POST %s: %w", t.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s returned status %d", t.url, resp.StatusCode)
	}

	t.logger.Debug().
		Str("to", payload.To).
		Msg("outbound message delivered")
	return nil
}
