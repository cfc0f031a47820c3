//go:build !integration

package telegram

import (
	"testing"

	"chatbot-commerce/internal/domain/model"
)

func TestParseTurn(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		raw := []byte(`{
			"update_id": 1,
			"message": {
				"message_id": 10,
				"from": {"id": 1001, "username": "maria", "first_name": "Maria"},
				"chat": {"id": 1001},
				"text": "/start"
			}
		}`)
		turn, callbackID, ok := ParseTurn(raw)
		if !ok {
			t.Fatal("ok = false")
		}
		if callbackID != "" {
			t.Errorf("callbackID = %q, want empty for a typed message", callbackID)
		}
		if turn.Transport != model.TransportTelegram || turn.ChatID != "1001" || turn.TransportUserID != "1001" {
			t.Errorf("turn = %+v", turn)
		}
		if turn.Command != "/start" || turn.Callback != "" {
			t.Errorf("command = %q callback = %q", turn.Command, turn.Callback)
		}
		if turn.UserName != "maria" || turn.FirstName != "Maria" {
			t.Errorf("identity = %q / %q", turn.UserName, turn.FirstName)
		}
	})

	t.Run("callback query", func(t *testing.T) {
		raw := []byte(`{
			"update_id": 2,
			"callback_query": {
				"id": "cb-77",
				"from": {"id": 1001, "username": "maria", "first_name": "Maria"},
				"message": {"message_id": 42, "chat": {"id": 1001}},
				"data": "GO_TO_STEP:catalog"
			}
		}`)
		turn, callbackID, ok := ParseTurn(raw)
		if !ok {
			t.Fatal("ok = false")
		}
		if callbackID != "cb-77" {
			t.Errorf("callbackID = %q", callbackID)
		}
		if turn.Callback != "GO_TO_STEP:catalog" || turn.Command != "" {
			t.Errorf("callback = %q command = %q", turn.Callback, turn.Command)
		}
		if turn.OriginMessageID != "42" {
			t.Errorf("origin = %q, want the tapped message id", turn.OriginMessageID)
		}
	})

	ignored := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"empty update", `{"update_id": 3}`},
		{"non-text message", `{"update_id":4,"message":{"message_id":11,"from":{"id":1},"chat":{"id":1}}}`},
		{"callback without data", `{"update_id":5,"callback_query":{"id":"cb","from":{"id":1},"message":{"message_id":1,"chat":{"id":1}}}}`},
	}
	for _, tc := range ignored {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, ok := ParseTurn([]byte(tc.raw)); ok {
				t.Error("update should be ignored")
			}
		})
	}
}
