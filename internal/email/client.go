// Package email delivers transactional mail through the Resend HTTP API and
// records every outcome in email_logs.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"afripay/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Log is one row of email_logs.
type Log struct {
	ID                int64
	Recipient         string
	Subject           string
	Template          string
	ProviderMessageID string
	Status            Status
	Error             string
	CreatedAt         time.Time
}

type LogStore interface {
	SaveLog(ctx context.Context, l *Log) error
}

// Message is a rendered email.
type Message struct {
	To       string
	Subject  string
	HTML     string
	Template string
}

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("email delivery disabled")

// Sender posts messages to Resend, retrying transient failures.
type Sender struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	from       string
	logs       LogStore
	maxElapsed time.Duration
}

func New(cfg config.EmailCfg, logs LogStore) *Sender {
	return &Sender{
		client:     &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.ResendAPIKey,
		from:       cfg.FromEmail,
		logs:       logs,
		maxElapsed: 30 * time.Second,
	}
}

func (s *Sender) Enabled() bool { return s.apiKey != "" }

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers msg and returns Resend's message id. 4xx responses other than
// 429 are not retried.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	body, err := json.Marshal(sendRequest{From: s.from, To: []string{msg.To}, Subject: msg.Subject, HTML: msg.HTML})
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON payload: %w", err)
	}

	var id string
	op := func() error {
		var err error
		id, err = s.post(ctx, body)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = s.maxElapsed
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Str("template", msg.Template).Dur("retry_in", next).Msg("email send failed, retrying")
	}
	err = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)

	s.record(ctx, msg, id, err)
	return id, err
}

func (s *Sender) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("User-Agent", "AfriPay/email")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().Int("status_code", resp.StatusCode).Int("body_length", len(raw)).Msg("resend response")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out sendResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", backoff.Permanent(fmt.Errorf("decode resend response: %w", err))
		}
		return out.ID, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("resend: status %d", resp.StatusCode)
	default:
		return "", backoff.Permanent(fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
}

func (s *Sender) record(ctx context.Context, msg Message, id string, sendErr error) {
	if s.logs == nil {
		return
	}
	l := &Log{
		Recipient:         msg.To,
		Subject:           msg.Subject,
		Template:          msg.Template,
		ProviderMessageID: id,
		Status:            StatusSent,
		CreatedAt:         time.Now().UTC(),
	}
	if sendErr != nil {
		l.Status = StatusFailed
		l.Error = sendErr.Error()
	}
	// the send outcome must be recorded even if the request context ended
	if err := s.logs.SaveLog(context.WithoutCancel(ctx), l); err != nil {
		log.Error().Err(err).Str("recipient", msg.To).Msg("email log write failed")
	}
}
