package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	signaturePrefix       = "sha256="
)

// WebhookPublisher POSTs audit envelopes to one receiver. The body is signed
// with HMAC-SHA256 and the event id doubles as the idempotency key, since the
// outbox delivers at least once.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	req, err := p.newRequest(ctx, topic, event)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s to webhook: %w", event.EventID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected %s: status %d", event.EventID, resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) newRequest(ctx context.Context, topic string, event domain.EventEnvelope) (*http.Request, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", event.EventID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}

	h := req.Header
	h.Set("Content-Type", "application/json")
	h.Set("Idempotency-Key", event.EventID)
	h.Set("X-Gmp-Topic", topic)
	h.Set("X-Gmp-Event-Type", event.EventType)
	h.Set("X-Gmp-Aggregate", AggregateKey(event))
	h.Set("X-Gmp-Record-Version", strconv.FormatInt(event.Version, 10))
	if !event.ActorID.IsSystem() {
		h.Set("X-Gmp-Actor", strconv.FormatInt(int64(event.ActorID), 10))
	}
	h.Set("X-Hub-Signature-256", signaturePrefix+Sign(p.secret, body))
	return req, nil
}

// AggregateKey is "<table>/<record id>", or just the table for table-wide
// events such as INTEGRITY_CHECK.
func AggregateKey(event domain.EventEnvelope) string {
	if event.AggregateID == 0 {
		return event.AggregateType
	}
	return event.AggregateType + "/" + strconv.FormatInt(event.AggregateID, 10)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Hub-Signature-256 header value against body.
// Receivers can use it to authenticate deliveries.
func VerifySignature(secret, body []byte, header string) bool {
	got, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return false
	}
	want := Sign(secret, body)
	return hmac.Equal([]byte(got), []byte(want))
}
