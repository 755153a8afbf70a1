package publisher

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/ryosukesatoh/arxiv-push/internal/report"
	"github.com/ryosukesatoh/arxiv-push/internal/retry"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailPublisher sends the digest as an HTML email via SMTP.
type EmailPublisher struct {
	host        string
	port        int
	username    string
	password    string
	from        string
	to          []string
	send        sendMailFunc
	retryConfig retry.Config
}

func NewEmailPublisher(host string, port int, username, password, from string, to []string) *EmailPublisher {
	return &EmailPublisher{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		send:     smtp.SendMail,
		retryConfig: retry.Config{
			MaxRetries: 2,
			BaseDelay:  2 * time.Second,
		},
	}
}

func (p *EmailPublisher) Publish(ctx context.Context, digest *Digest) error {
	body, err := digest.Renderer().Render(report.HTML, digest.Papers, digest.Keywords)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	msg := p.buildMessage(digest, body)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	err = retry.Do(ctx, p.retryConfig, func(ctx context.Context) error {
		return p.send(addr, auth, p.from, p.to, msg)
	})
	if err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

func (p *EmailPublisher) buildMessage(digest *Digest, body []byte) []byte {
	subject := fmt.Sprintf("arXiv Digest: %s - %s (%d papers)",
		digest.KeywordsString(), digest.Date.Format("2006-01-02"), len(digest.Papers))

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", p.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(p.to, ","))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", digest.Date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.Write(body)
	return []byte(b.String())
}
