package telegram

import (
	"encoding/json"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/usecase"
)

// ParseTurn maps a raw Telegram webhook update onto a conversation turn.
// The second return is the callback query id to acknowledge, when the turn
// came from a button tap. ok is false for update kinds the router ignores
// (channel posts, message edits, non-text messages).
func ParseTurn(raw []byte) (turn usecase.Turn, callbackID string, ok bool) {
	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return usecase.Turn{}, "", false
	}

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil || cq.Data == "" {
			return usecase.Turn{}, "", false
		}
		return usecase.Turn{
			Transport:       model.TransportTelegram,
			ChatID:          strconv.FormatInt(cq.Message.Chat.ID, 10),
			TransportUserID: strconv.FormatInt(cq.From.ID, 10),
			UserName:        cq.From.UserName,
			FirstName:       cq.From.FirstName,
			Callback:        cq.Data,
			OriginMessageID: strconv.Itoa(cq.Message.MessageID),
		}, cq.ID, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Text == "" {
			return usecase.Turn{}, "", false
		}
		return usecase.Turn{
			Transport:       model.TransportTelegram,
			ChatID:          strconv.FormatInt(msg.Chat.ID, 10),
			TransportUserID: strconv.FormatInt(msg.From.ID, 10),
			UserName:        msg.From.UserName,
			FirstName:       msg.From.FirstName,
			Command:         msg.Text,
		}, "", true
	}
	return usecase.Turn{}, "", false
}
