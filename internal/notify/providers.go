package notify

import (
	"context"
	"fmt"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type postmarkSender struct {
	client *postmark.Client
}

// NewPostmarkSender creates a Sender using a Postmark server token
func NewPostmarkSender(serverToken string) Sender {
	return &postmarkSender{client: postmark.NewClient(serverToken, "")}
}

func (s *postmarkSender) Send(_ context.Context, from string, msg Message) error {
	_, err := s.client.SendEmail(postmark.Email{
		From:     from,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTML,
		TextBody: msg.Text,
	})
	return err
}

type sendgridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender creates a Sender using a SendGrid API key
func NewSendGridSender(apiKey string) Sender {
	return &sendgridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *sendgridSender) Send(ctx context.Context, from string, msg Message) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("", from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
