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

	"github.com/RobertHaas/AdDesk/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
)

// Message is the outbound confirmation payload.
type Message struct {
	To   string            `json:"to"`
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// Dispatcher delivers confirmation messages to the notification channel.
// Delivery is best effort: the provider's webhook retry behavior must never
// depend on the availability of this channel, so callers swallow errors.
type Dispatcher struct {
	baseURL string
	client  *http.Client
}

func NewDispatcher(cfg config.Config) *Dispatcher {
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		baseURL: strings.TrimRight(cfg.NotifyBaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if d.baseURL == "" {
		log.Debugf("[Notify] no base URL configured, dropping %s notification for %s", msg.Type, msg.To)
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
