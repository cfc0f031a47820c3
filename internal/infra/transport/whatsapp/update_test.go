//go:build !integration

package whatsapp

import (
	"testing"

	"chatbot-commerce/internal/domain/model"
)

func TestParseTurn(t *testing.T) {
	t.Run("inbound text", func(t *testing.T) {
		raw := []byte(`{
			"event": "messages.upsert",
			"instance": "loja",
			"data": {
				"key": {"remoteJid": "5511999990000@s.whatsapp.net", "fromMe": false},
				"pushName": "Maria",
				"message": {"conversation": "/start"}
			}
		}`)
		turn, ok := ParseTurn(raw)
		if !ok {
			t.Fatal("ok = false")
		}
		if turn.Transport != model.TransportWhatsApp {
			t.Errorf("transport = %q", turn.Transport)
		}
		if turn.ChatID != "5511999990000" || turn.TransportUserID != "5511999990000" {
			t.Errorf("ids = %q / %q, want the bare number", turn.ChatID, turn.TransportUserID)
		}
		if turn.Command != "/start" || turn.FirstName != "Maria" {
			t.Errorf("turn = %+v", turn)
		}
	})

	ignored := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"other event", `{"event":"connection.update"}`},
		{"own outbound", `{"event":"messages.upsert","data":{"key":{"remoteJid":"5511999990000@s.whatsapp.net","fromMe":true},"message":{"conversation":"hi"}}}`},
		{"empty text", `{"event":"messages.upsert","data":{"key":{"remoteJid":"5511999990000@s.whatsapp.net"},"message":{"conversation":"  "}}}`},
		{"group jid", `{"event":"messages.upsert","data":{"key":{"remoteJid":"12036304@g.us"},"message":{"conversation":"hi"}}}`},
	}
	for _, tc := range ignored {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := ParseTurn([]byte(tc.raw)); ok {
				t.Error("event should be ignored")
			}
		})
	}
}
