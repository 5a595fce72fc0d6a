package mailer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// Resend envia pela API do Resend usando o SDK oficial.
type Resend struct {
	APIKey string
	From   string

	client *resend.Client
}

func NewResend(apiKey, from string) *Resend {
	apiKey = strings.TrimSpace(apiKey)
	return &Resend{
		APIKey: apiKey,
		From:   strings.TrimSpace(from),
		client: resend.NewCustomClient(&http.Client{Timeout: 10 * time.Second}, apiKey),
	}
}

// WithBaseURL aponta o cliente para outra URL base da API (ex: servidor de teste).
func (r *Resend) WithBaseURL(raw string) (*Resend, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse resend base url: %w", err)
	}
	r.client.BaseURL = u
	return r, nil
}

func (r *Resend) Configured() bool {
	return r != nil && r.APIKey != "" && r.From != ""
}

func (r *Resend) Send(ctx context.Context, m Email) (string, error) {
	if err := validate(m); err != nil {
		return "", err
	}
	from := m.From
	if from == "" {
		from = r.From
	}

	sent, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      m.To,
		Subject: m.Subject,
		Text:    m.Text,
		ReplyTo: m.ReplyTo,
		Headers: m.Headers,
	})
	if err != nil {
		return "", fmt.Errorf("resend send: %w", err)
	}
	return sent.Id, nil
}
