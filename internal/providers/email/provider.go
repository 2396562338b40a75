package email

import "context"

// Provider delivers one message to a list of recipients.
type Provider interface {
	Name() string
	Send(ctx context.Context, to []string, subject, htmlBody, textBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Name() string { return "noop" }

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject, htmlBody, textBody string) error {
	return nil
}
