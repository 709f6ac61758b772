package notifier

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/eduflow/billing-engine/internal/domain"
)

// LogTransport writes notifications to the process log. Default in
// development and whenever no Sendgrid key is configured.
type LogTransport struct{}

func NewLogTransport() *LogTransport {
	return &LogTransport{}
}

func (t *LogTransport) Send(_ context.Context, user *domain.User, notification *domain.Notification) error {
	log.Printf("notify %s <%s> [%s]: %s", user.Name, user.Email, notification.Type, notification.Message)
	return nil
}

// SendgridTransport emails notifications through the Sendgrid v3 API.
type SendgridTransport struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendgridTransport(apiKey, fromName, fromEmail string) *SendgridTransport {
	return &SendgridTransport{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromEmail),
	}
}

func (t *SendgridTransport) Send(_ context.Context, user *domain.User, notification *domain.Notification) error {
	subject := subjectFor(notification.Type)
	to := sgmail.NewEmail(user.Name, user.Email)
	message := sgmail.NewSingleEmail(t.from, subject, to, notification.Message, "")

	resp, err := t.client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func subjectFor(ntype domain.NotificationType) string {
	switch ntype {
	case domain.NotificationPaymentDue:
		return "Payment reminder"
	case domain.NotificationPaymentSuccessful:
		return "Payment received"
	case domain.NotificationPaymentOverdue:
		return "Payment overdue - course access suspended"
	case domain.NotificationNextPaymentCreated:
		return "Your next payment is scheduled"
	default:
		return "Course billing update"
	}
}
