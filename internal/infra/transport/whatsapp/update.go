package whatsapp

import (
	"encoding/json"
	"strings"

	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/usecase"
)

type inboundEvent struct {
	Event    string `json:"event"`
	Instance string `json:"instance"`
	Data     struct {
		Key struct {
			RemoteJid string `json:"remoteJid"`
			FromMe    bool   `json:"fromMe"`
		} `json:"key"`
		PushName string `json:"pushName"`
		Message  struct {
			Conversation string `json:"conversation"`
		} `json:"message"`
	} `json:"data"`
}

// ParseTurn maps an Evolution-style inbound event onto a conversation turn.
// ok is false for events that are not user text (status updates, our own
// outbound messages, group chatter).
func ParseTurn(raw []byte) (turn usecase.Turn, ok bool) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return usecase.Turn{}, false
	}
	if ev.Event != "messages.upsert" || ev.Data.Key.FromMe {
		return usecase.Turn{}, false
	}
	text := strings.TrimSpace(ev.Data.Message.Conversation)
	if text == "" {
		return usecase.Turn{}, false
	}
	number, found := strings.CutSuffix(ev.Data.Key.RemoteJid, "@s.whatsapp.net")
	if !found {
		// group jids and broadcasts are not conversations with the bot
		return usecase.Turn{}, false
	}
	return usecase.Turn{
		Transport:       model.TransportWhatsApp,
		ChatID:          number,
		TransportUserID: number,
		FirstName:       ev.Data.PushName,
		Command:         text,
	}, true
}
