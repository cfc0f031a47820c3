package adapter

import (
	"context"
	"time"
)

// InlineButton is a transport-neutral action button. Data is the callback
// token for graph-navigating buttons; URL produces a link button instead.
type InlineButton struct {
	Text string
	Data string
	URL  string
}

// OutMessage is the rendered form of a step, before transport-specific
// escaping and keyboard translation.
type OutMessage struct {
	Text    string
	Buttons [][]InlineButton
	// Code renders as a fixed-width block (activation codes).
	Code string
}

// Messenger is the hex port for outbound messaging transports. Chat and
// message ids are strings at this layer; each adapter maps them to its
// native representation. EditMessage returning domain.ErrUnsupported is an
// expected condition and triggers the delete-then-send fallback.
type Messenger interface {
	Name() string

	SendMessage(ctx context.Context, chatID string, msg OutMessage) (messageID string, err error)
	EditMessage(ctx context.Context, chatID, messageID string, msg OutMessage) error
	DeleteMessage(ctx context.Context, chatID, messageID string) error

	// CreateInviteLink requests a single-use, time-boxed group invite.
	CreateInviteLink(ctx context.Context, groupID int64, expiresIn time.Duration, memberLimit int) (string, error)
	// BanMember / UnbanMember implement access revocation; the immediate
	// unban keeps the user free to re-join after a future purchase.
	BanMember(ctx context.Context, groupID int64, userID int64) error
	UnbanMember(ctx context.Context, groupID int64, userID int64) error
}
