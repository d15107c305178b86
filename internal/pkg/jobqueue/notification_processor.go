package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RobertHaas/AdDesk/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
)

// Sender delivers one outbound message. Satisfied by *notify.Dispatcher.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// NotificationProcessor delivers confirmation messages from the queue. It
// fails independently of the webhook pipeline: errors here trigger queue
// retries and, eventually, a log entry, never a reconciliation failure.
type NotificationProcessor struct {
	sender Sender
}

func NewNotificationProcessor(sender Sender) *NotificationProcessor {
	return &NotificationProcessor{sender: sender}
}

// ProcessJob sends the notification with a bounded timeout.
func (p *NotificationProcessor) ProcessJob(ctx context.Context, job *Job) error {
	var payload NotificationJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Unparseable payloads can never succeed; drop without retry.
		log.Errorf("[Notify] Dropping job %s with malformed payload: %v", job.ID, err)
		return nil
	}
	if payload.To == "" {
		log.Warnf("[Notify] Dropping job %s with no recipient", job.ID)
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := p.sender.Send(sendCtx, notify.Message{
		To:   payload.To,
		Type: payload.Kind,
		Data: payload.Data,
	})
	if err != nil {
		return fmt.Errorf("send %s notification to %s: %w", payload.Kind, payload.To, err)
	}
	log.Infof("[Notify] Sent %s notification to %s", payload.Kind, payload.To)
	return nil
}
