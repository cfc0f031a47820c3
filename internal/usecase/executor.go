// File: internal/usecase/executor.go
package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"chatbot-commerce/internal/domain/model"
	"chatbot-commerce/internal/domain/ports/adapter"
)

// RenderVars is the fixed set of substitution variables available to step
// templates. Unknown placeholders pass through unexpanded.
type RenderVars struct {
	UserName    string
	FirstName   string
	ProductName string
}

// StepExecutor renders steps to transport-neutral messages and delivers them
// through a Messenger, preferring an in-place edit when the turn originated
// from a button press.
type StepExecutor struct {
	log *zerolog.Logger
}

func NewStepExecutor(logger *zerolog.Logger) *StepExecutor {
	execLog := logger.With().Str("component", "StepExecutor").Logger()
	return &StepExecutor{log: &execLog}
}

// Render expands the step template and translates buttons into callback
// tokens. Escaping is left to the transport adapter, which knows its own
// reserved characters.
func (e *StepExecutor) Render(step *model.Step, vars RenderVars) adapter.OutMessage {
	text := expandVars(step.MessageTemplate, vars)

	rows := make([][]adapter.InlineButton, 0, len(step.Buttons))
	for _, b := range step.Buttons {
		rows = append(rows, []adapter.InlineButton{{
			Text: b.Text,
			Data: ActionToken(b.Action),
		}})
	}
	return adapter.OutMessage{Text: text, Buttons: rows}
}

// Deliver applies msg to the conversation. originMessageID is the message
// whose button produced this turn, empty when the turn came from a typed
// command. Edit failures are expected (media messages have no editable text
// body) and degrade to delete-then-send; only a failure of the final send is
// returned.
func (e *StepExecutor) Deliver(ctx context.Context, m adapter.Messenger, chatID, originMessageID string, msg adapter.OutMessage) (string, error) {
	if originMessageID != "" {
		err := m.EditMessage(ctx, chatID, originMessageID, msg)
		if err == nil {
			return originMessageID, nil
		}
		e.log.Debug().Err(err).Str("chat_id", chatID).Msg("edit failed, falling back to delete+send")
		if err := m.DeleteMessage(ctx, chatID, originMessageID); err != nil {
			e.log.Debug().Err(err).Str("chat_id", chatID).Msg("delete of original message failed")
		}
	}
	id, err := m.SendMessage(ctx, chatID, msg)
	if err != nil {
		e.log.Error().Err(err).Str("chat_id", chatID).Msg("send failed")
		return "", err
	}
	return id, nil
}

func expandVars(template string, vars RenderVars) string {
	r := strings.NewReplacer(
		"{userName}", vars.UserName,
		"{firstName}", vars.FirstName,
		"{productName}", vars.ProductName,
	)
	return r.Replace(template)
}

// ActionToken encodes a button action as callback data, ACTION_TYPE:payload.
func ActionToken(a model.Action) string {
	if a.Payload == "" {
		return string(a.Type)
	}
	return string(a.Type) + ":" + a.Payload
}
