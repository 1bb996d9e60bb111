package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// MatchNotice is the display-level summary pushed to hospital dashboards
// after a matching run or a committed selection.
type MatchNotice struct {
	RequestID  string  `json:"request_id"`
	Event      string  `json:"event"` // "matched" or "selected"
	Candidates int     `json:"candidates"`
	TopDonorID string  `json:"top_donor_id,omitempty"`
	TopScore   float64 `json:"top_score,omitempty"`
}

// Notifier delivers notices best-effort; the engine never blocks on it.
type Notifier interface {
	Notify(hospitalID string, n MatchNotice) error
}

// WebhookNotifier posts notices to a hospital-system HTTP endpoint.
type WebhookNotifier struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewWebhookNotifier(endpoint, token string) *WebhookNotifier {
	return &WebhookNotifier{Endpoint: endpoint, Token: token, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (w *WebhookNotifier) Notify(hospitalID string, n MatchNotice) error {
	body := map[string]interface{}{"hospital_id": hospitalID, "notice": n}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, w.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
