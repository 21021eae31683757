package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/gatekeep/internal/assessment"
)

// WebhookSender posts verdicts to a Slack-compatible incoming webhook.
type WebhookSender struct {
	url        string
	httpClient *http.Client
}

// WebhookOption configures a WebhookSender.
type WebhookOption func(*WebhookSender)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *WebhookSender) {
		w.httpClient = client
	}
}

func NewWebhookSender(url string, opts ...WebhookOption) *WebhookSender {
	w := &WebhookSender{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (w *WebhookSender) Send(ctx context.Context, s assessment.Session) error {
	body, err := json.Marshal(buildMessage(Summarize(s)))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func buildMessage(sum Summary) slackMessage {
	color := "#f44336"
	if sum.Status == assessment.StatusPassed {
		color = "#4caf50"
	}

	fields := []slackField{
		{Title: "Candidate", Value: fmt.Sprintf("%s <%s>", sum.CandidateName, sum.CandidateEmail), Short: false},
		{Title: "Status", Value: string(sum.Status), Short: true},
		{Title: "Ended at", Value: string(sum.EndedAt), Short: true},
	}
	for _, st := range sum.Stages {
		v := strconv.Itoa(st.Percent) + "%"
		if st.TimedOut {
			v += " (time limit)"
		}
		fields = append(fields, slackField{Title: st.Label, Value: v, Short: true})
	}
	if sum.Violations > 0 {
		fields = append(fields, slackField{Title: "Proctoring violations", Value: strconv.Itoa(sum.Violations), Short: true})
	}
	if len(sum.Reasons) > 0 {
		fields = append(fields, slackField{Title: "Reasons", Value: strings.Join(sum.Reasons, "\n"), Short: false})
	}

	return slackMessage{
		Text:        sum.Headline(),
		Attachments: []slackAttachment{{Color: color, Fields: fields}},
	}
}
