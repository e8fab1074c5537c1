// Package webhook posts signed notifications about new records to an
// operator-configured URL.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marcus/imtti/internal/models"
)

// EventRecordCreated is sent after a record is stored.
const EventRecordCreated = "record.created"

// Payload is the webhook POST body.
type Payload struct {
	Event      string        `json:"event"`
	Collection string        `json:"collection"`
	Record     models.Record `json:"record"`
	Timestamp  string        `json:"timestamp"`
}

// NewPayload builds a payload stamped with the current time.
func NewPayload(event string, collection models.Collection, rec models.Record) Payload {
	return Payload{
		Event:      event,
		Collection: string(collection),
		Record:     rec,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Sign returns the signature header value for body sent at unixTS.
func Sign(secret, unixTS string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unixTS))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch performs a synchronous HTTP POST to the webhook URL.
// Returns nil on success (2xx status).
func Dispatch(ctx context.Context, client *http.Client, url, secret string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "imtti-webhook/1")

	unixTS := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-IMTTI-Timestamp", unixTS)
	req.Header.Set("X-IMTTI-Event", payload.Event)
	if secret != "" {
		req.Header.Set("X-IMTTI-Signature", Sign(secret, unixTS, body))
	}

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}
