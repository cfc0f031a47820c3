// File: internal/infra/transport/whatsapp/messenger.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*Messenger)(nil)

// Messenger sends through an Evolution-style WhatsApp gateway instance.
// WhatsApp has no inline callback buttons, so action buttons degrade to
// plain lines: URL buttons become visible links, data buttons are dropped.
// EditMessage is unsupported, which pushes callers onto the delete-then-send
// path.
type Messenger struct {
	baseURL  string
	apiKey   string
	instance string
	client   *http.Client
}

func NewMessenger(baseURL, apiKey, instance string) *Messenger {
	return &Messenger{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		instance: instance,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Messenger) Name() string { return "whatsapp" }

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

func (m *Messenger) SendMessage(ctx context.Context, chatID string, msg adapter.OutMessage) (string, error) {
	body, err := json.Marshal(sendTextRequest{Number: chatID, Text: renderText(msg)})
	if err != nil {
		return "", err
	}
	var resp sendTextResponse
	if err := m.post(ctx, "/message/sendText/"+m.instance, body, &resp); err != nil {
		return "", err
	}
	return resp.Key.ID, nil
}

func (m *Messenger) EditMessage(ctx context.Context, chatID, messageID string, msg adapter.OutMessage) error {
	return domain.ErrUnsupported
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	body, err := json.Marshal(map[string]string{"number": chatID, "id": messageID})
	if err != nil {
		return err
	}
	return m.post(ctx, "/chat/deleteMessageForEveryone/"+m.instance, body, nil)
}

func (m *Messenger) CreateInviteLink(ctx context.Context, groupID int64, expiresIn time.Duration, memberLimit int) (string, error) {
	return "", domain.ErrUnsupported
}

func (m *Messenger) BanMember(ctx context.Context, groupID, userID int64) error {
	return domain.ErrUnsupported
}

func (m *Messenger) UnbanMember(ctx context.Context, groupID, userID int64) error {
	return domain.ErrUnsupported
}

func (m *Messenger) post(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp gateway: %s: %s", resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func renderText(msg adapter.OutMessage) string {
	var b strings.Builder
	b.WriteString(msg.Text)
	if msg.Code != "" {
		b.WriteString("\n\n")
		b.WriteString(msg.Code)
	}
	for _, row := range msg.Buttons {
		for _, btn := range row {
			if btn.URL == "" {
				continue
			}
			b.WriteString("\n\n")
			b.WriteString(btn.Text)
			b.WriteString(": ")
			b.WriteString(btn.URL)
		}
	}
	return b.String()
}
