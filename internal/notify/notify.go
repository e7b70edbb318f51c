// Package notify delivers push messages to users through the Telegram bot.
package notify

import (
	"context"
	"log/slog"
)

// Kind names a message template.
type Kind string

const (
	KindLikeReceived       Kind = "like_received"
	KindMatch              Kind = "match"
	KindModerationApproved Kind = "moderation_approved"
	KindModerationDeclined Kind = "moderation_declined"
)

// Notifier is fire-and-forget: Notify never blocks on delivery and never
// reports delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, telegramUserID int64, kind Kind)
}

// Nop logs and drops every notification. Used when the bot is disabled.
type Nop struct {
	Logger *slog.Logger
}

func (n Nop) Notify(_ context.Context, telegramUserID int64, kind Kind) {
	if n.Logger != nil {
		n.Logger.Debug("notification dropped, bot disabled", "tg_user", telegramUserID, "kind", kind)
	}
}
