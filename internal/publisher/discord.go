package publisher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
	"github.com/ryosukesatoh/arxiv-push/internal/jsonutil"
	"github.com/ryosukesatoh/arxiv-push/internal/report"
	"github.com/ryosukesatoh/arxiv-push/internal/retry"
)

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

const (
	embedColor          = 0xB31B1B // arXiv red
	maxEmbedsPerMessage = 10
	maxCharsPerMessage  = 6000
)

// DiscordPublisher publishes digests to a Discord channel via webhook.
type DiscordPublisher struct {
	webhookURL  string
	client      *http.Client
	retryConfig retry.Config
	batchDelay  time.Duration
}

// NewDiscordPublisher creates a new DiscordPublisher.
func NewDiscordPublisher(webhookURL string) *DiscordPublisher {
	return &DiscordPublisher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		retryConfig: retry.Config{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
		},
		batchDelay: 500 * time.Millisecond,
	}
}

// Publish sends the digest to Discord as a series of rich embeds.
func (d *DiscordPublisher) Publish(ctx context.Context, digest *Digest) error {
	batches := batchEmbeds(buildEmbeds(digest))

	for i, batch := range batches {
		err := retry.Do(ctx, d.retryConfig, func(ctx context.Context) error {
			return d.sendWebhook(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("discord: failed to send batch %d: %w", i+1, err)
		}

		// Delay between batches to avoid rate limits.
		if i < len(batches)-1 && d.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.batchDelay):
			}
		}
	}
	return nil
}

// buildEmbeds creates the overview embed and one embed per paper.
func buildEmbeds(digest *Digest) []discordEmbed {
	embeds := make([]discordEmbed, 0, len(digest.Papers)+1)

	embeds = append(embeds, discordEmbed{
		Title:       truncate(fmt.Sprintf("arXiv Digest: %s", digest.KeywordsString()), 256),
		Description: fmt.Sprintf("%d papers found", len(digest.Papers)),
		Color:       embedColor,
		Footer:      &discordEmbedFooter{Text: digest.Date.Format("2006-01-02")},
		Timestamp:   digest.Date.Format(time.RFC3339),
	})

	for i, p := range digest.Papers {
		e := discordEmbed{
			Title:       truncate(fmt.Sprintf("%d. %s", i+1, p.Title), 256),
			URL:         p.URL,
			Description: truncate(p.SummaryOrDefault(), 4096),
			Color:       embedColor,
			Fields:      paperFields(p),
		}
		if len(p.Categories) > 0 {
			e.Footer = &discordEmbedFooter{Text: truncate(strings.Join(p.Categories, " | "), 2048)}
		}
		embeds = append(embeds, e)
	}
	return embeds
}

func paperFields(p fetcher.Paper) []discordEmbedField {
	var fields []discordEmbedField
	if len(p.Authors) > 0 {
		fields = append(fields, discordEmbedField{
			Name:  "Authors",
			Value: truncate(fetcher.FormatAuthors(p.Authors, report.MaxAuthors), 1024),
		})
	}
	if date := p.PublishedDate(); date != "" {
		fields = append(fields, discordEmbedField{Name: "Published", Value: date, Inline: true})
	}
	if p.PDFURL != "" {
		fields = append(fields, discordEmbedField{Name: "PDF", Value: p.PDFURL, Inline: true})
	}
	return fields
}

// batchEmbeds splits embeds into batches respecting Discord limits:
// max 10 embeds per message, max 6000 total characters per message.
func batchEmbeds(embeds []discordEmbed) [][]discordEmbed {
	var batches [][]discordEmbed
	var current []discordEmbed
	currentChars := 0

	for _, e := range embeds {
		ec := embedCharCount(e)

		if len(current) > 0 && (len(current) >= maxEmbedsPerMessage || currentChars+ec > maxCharsPerMessage) {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}

		current = append(current, e)
		currentChars += ec
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// sendWebhook posts a batch of embeds to the Discord webhook.
func (d *DiscordPublisher) sendWebhook(ctx context.Context, embeds []discordEmbed) error {
	body, err := jsonutil.Marshal(discordWebhookPayload{Embeds: embeds})
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Service: "discord", Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}

// truncate shortens s to max runes, preferring a sentence boundary.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := string(runes[:max-1])
	// Try to cut at a sentence boundary.
	if idx := strings.LastIndexAny(cut, ".!?。！？"); idx > len(cut)/2 {
		_, size := utf8.DecodeRuneInString(cut[idx:])
		return cut[:idx+size]
	}
	return cut + "…"
}

// embedCharCount returns the total character count of an embed for batching purposes.
func embedCharCount(e discordEmbed) int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	if e.Footer != nil {
		n += utf8.RuneCountInString(e.Footer.Text)
	}
	return n
}
