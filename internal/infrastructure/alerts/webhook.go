package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketdata-service/internal/application"
	"marketdata-service/internal/infrastructure/httpx"
)

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type attachment struct {
	Color  string  `json:"color"`
	Fields []field `json:"fields"`
}

type message struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

// WebhookNotifier posts sampled fetch-failure alerts to a Slack-compatible
// incoming webhook.
type WebhookNotifier struct {
	URL    string
	Client *httpx.Client
}

var _ application.AlertNotifier = (*WebhookNotifier)(nil)

func (n *WebhookNotifier) Notify(ctx context.Context, a application.Alert) error {
	if n.URL == "" {
		return nil
	}
	msg := message{
		Text: fmt.Sprintf("quote fetch failed: %s (%s)", a.Symbol, a.DataType),
		Attachments: []attachment{{
			Color: "danger",
			Fields: []field{
				{Title: "Symbol", Value: a.Symbol, Short: true},
				{Title: "Type", Value: string(a.DataType), Short: true},
				{Title: "Reason", Value: a.Reason},
				{Title: "At", Value: a.At.UTC().Format(time.RFC3339), Short: true},
			},
		}},
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = &httpx.Client{}
	}
	return client.DoJSON(ctx, req, nil)
}
