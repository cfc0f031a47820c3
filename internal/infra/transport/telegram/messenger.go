// File: internal/infra/transport/telegram/messenger.go
package telegram

import (
	"context"
	"encoding/json"
	"html"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatbot-commerce/internal/domain"
	"chatbot-commerce/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*Messenger)(nil)

// Messenger sends through one tenant's Telegram bot. Texts are rendered with
// Telegram HTML parse mode; tenant step texts and activation codes are
// escaped, and codes go out as <code> blocks for tap-to-copy.
type Messenger struct {
	bot *tgbotapi.BotAPI
}

func NewMessenger(botToken string) (*Messenger, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Messenger{bot: bot}, nil
}

func (m *Messenger) Name() string { return "telegram" }

func (m *Messenger) SendMessage(ctx context.Context, chatID string, msg adapter.OutMessage) (string, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return "", err
	}
	out := tgbotapi.NewMessage(id, renderText(msg))
	out.ParseMode = tgbotapi.ModeHTML
	if kb, ok := keyboard(msg); ok {
		out.ReplyMarkup = kb
	}
	sent, err := m.bot.Send(out)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (m *Messenger) EditMessage(ctx context.Context, chatID, messageID string, msg adapter.OutMessage) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	edit := tgbotapi.NewEditMessageText(id, msgID, renderText(msg))
	edit.ParseMode = tgbotapi.ModeHTML
	if kb, ok := keyboard(msg); ok {
		edit.ReplyMarkup = &kb
	}
	_, err = m.bot.Send(edit)
	return err
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	msgID, err := strconv.Atoi(messageID)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = m.bot.Request(tgbotapi.NewDeleteMessage(id, msgID))
	return err
}

// CreateInviteLink mints a short-lived, single-use invite into the tenant's
// private group.
func (m *Messenger) CreateInviteLink(ctx context.Context, groupID int64, expiresIn time.Duration, memberLimit int) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: groupID},
		ExpireDate:  int(time.Now().Add(expiresIn).Unix()),
		MemberLimit: memberLimit,
	}
	resp, err := m.bot.Request(cfg)
	if err != nil {
		return "", err
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

func (m *Messenger) BanMember(ctx context.Context, groupID, userID int64) error {
	_, err := m.bot.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: groupID, UserID: userID},
	})
	return err
}

// UnbanMember lifts the ban right after revocation so the member can rejoin
// with a fresh purchase instead of staying permanently blocked.
func (m *Messenger) UnbanMember(ctx context.Context, groupID, userID int64) error {
	_, err := m.bot.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: groupID, UserID: userID},
		OnlyIfBanned:     true,
	})
	return err
}

// AnswerCallback clears the client-side loading spinner on a tapped button.
func (m *Messenger) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := m.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

// renderText escapes everything before it meets the HTML parse mode: step
// texts and substituted names come from tenants and buyers, and a stray "<"
// would otherwise make Telegram reject the send or smuggle markup in.
func renderText(msg adapter.OutMessage) string {
	text := html.EscapeString(msg.Text)
	if msg.Code == "" {
		return text
	}
	return text + "\n\n<code>" + html.EscapeString(msg.Code) + "</code>"
}

func keyboard(msg adapter.OutMessage) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(msg.Buttons) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
	for _, row := range msg.Buttons {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
