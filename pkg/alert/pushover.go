package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

// PushoverChannel delivers alerts via the Pushover push-notification API.
type PushoverChannel struct {
	token  string
	user   string
	client *http.Client
}

// NewPushoverChannel creates a Pushover channel. token/user are the
// application and user/group keys from the Pushover dashboard.
func NewPushoverChannel(token, user string) *PushoverChannel {
	return &PushoverChannel{
		token:  token,
		user:   user,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PushoverChannel) Name() string { return "pushover" }

// Send posts alert to Pushover, mapping model.Severity onto Pushover's
// priority scale (critical alerts request emergency-priority retry).
func (p *PushoverChannel) Send(ctx context.Context, alert model.Alert) error {
	if p.token == "" || p.user == "" {
		return fmt.Errorf("pushover token and user required")
	}

	payload := map[string]interface{}{
		"token":   p.token,
		"user":    p.user,
		"title":   string(alert.Severity) + ": " + alert.RuleID,
		"message": alert.Message,
	}
	switch alert.Severity {
	case model.SeverityCritical:
		payload["priority"] = 2
		payload["retry"] = 30
		payload["expire"] = 3600
	case model.SeverityWarning:
		payload["priority"] = 0
	default:
		payload["priority"] = -1
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pushover payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.pushover.net/1/messages.json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushover notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover API returned status %d", resp.StatusCode)
	}
	return nil
}
