package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Discord embed sidebar colours per alert family.
const (
	discordGreen  = 0x2ECC71 // released, minted
	discordOrange = 0xE67E22 // refunded, expired
	discordBlue   = 0x3498DB // everything else
)

// DiscordSender delivers marketplace alerts via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses
// a default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send posts the alert to the webhook as a single embed, coloured by whether
// the underlying transition released, returned, or merely moved state.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := struct {
		Username string         `json:"username"`
		Embeds   []discordEmbed `json:"embeds"`
	}{
		Username: "watchd",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       embedColor(title),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func embedColor(title string) int {
	switch {
	case strings.Contains(title, "released"), strings.Contains(title, "minted"):
		return discordGreen
	case strings.Contains(title, "refunded"), strings.Contains(title, "expired"):
		return discordOrange
	default:
		return discordBlue
	}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
