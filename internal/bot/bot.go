// Package bot runs the Telegram side of moderation: it posts review
// cards to the admin chat and turns inline button presses into
// moderation decisions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/luvo/internal/db"
	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/service/moderation"
	"github.com/oggyb/luvo/internal/service/view"
)

const (
	callbackPrefix = "mod"

	actionToggle  = "toggle"
	actionApprove = "approve"
	actionDecline = "decline"

	openAppLabel = "Открыть Luvo"

	startText = "Привет! Luvo помогает находить людей рядом. Открой приложение, чтобы начать."
	rulesText = "<b>Правила сообщества</b>\n\n" +
		"1. Только реальные фото, на которых видно тебя.\n" +
		"2. Без оскорблений, спама и рекламы.\n" +
		"3. Пользователям должно быть 18 лет или больше.\n\n" +
		"Анкеты, нарушающие правила, отклоняются модератором."
)

var flagOrder = []int{db.FlagHidePhoto, db.FlagHideName, db.FlagHideBio}

var flagLabels = map[int]string{
	db.FlagHidePhoto: "Скрыть фото",
	db.FlagHideName:  "Скрыть имя",
	db.FlagHideBio:   "Скрыть био",
}

var flagActions = map[int]string{
	db.FlagHidePhoto: "фото",
	db.FlagHideName:  "имя",
	db.FlagHideBio:   "био",
}

// Client is the slice of *tgbotapi.BotAPI the bot needs.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	client      Client
	moderation  *moderation.Service
	adminChatID int64
	webAppURL   string
	logger      *slog.Logger
	now         func() time.Time
}

func New(client Client, mod *moderation.Service, adminChatID int64, webAppURL string, logger *slog.Logger) *Bot {
	return &Bot{
		client:      client,
		moderation:  mod,
		adminChatID: adminChatID,
		webAppURL:   webAppURL,
		logger:      logger,
		now:         time.Now,
	}
}

// Run handles updates until ctx is done or the channel closes.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.IsCommand():
		b.handleCommand(upd.Message)
	}
}

func (b *Bot) handleCommand(m *tgbotapi.Message) {
	var msg tgbotapi.MessageConfig
	switch m.Command() {
	case "start":
		msg = tgbotapi.NewMessage(m.Chat.ID, startText)
		if b.webAppURL != "" {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(openAppLabel, b.webAppURL)),
			)
		}
	case "rule":
		msg = tgbotapi.NewMessage(m.Chat.ID, rulesText)
		msg.ParseMode = tgbotapi.ModeHTML
	default:
		return
	}
	if _, err := b.client.Send(msg); err != nil {
		b.logger.Warn("command reply failed", "command", m.Command(), "err", err)
	}
}

// Publish posts the review card of a new case to the admin chat and
// remembers the message so later button presses can edit it.
func (b *Bot) Publish(ctx context.Context, card *moderation.Card) error {
	if b.adminChatID == 0 {
		return errors.New("admin chat is not configured")
	}

	caption := b.caption(card.User)
	keyboard := keyboardFor(card.Case.ID, card.Case.Flags)

	var (
		sent tgbotapi.Message
		err  error
	)
	if len(card.Photos) > 0 {
		p := tgbotapi.NewPhoto(b.adminChatID, tgbotapi.FileURL(card.Photos[0]))
		p.Caption = caption
		p.ParseMode = tgbotapi.ModeHTML
		p.ReplyMarkup = keyboard
		sent, err = b.client.Send(p)
		if err != nil {
			b.logger.Warn("review photo failed, falling back to text", "case", card.Case.ID, "err", err)
		}
	}
	if len(card.Photos) == 0 || err != nil {
		m := tgbotapi.NewMessage(b.adminChatID, caption)
		m.ParseMode = tgbotapi.ModeHTML
		m.ReplyMarkup = keyboard
		sent, err = b.client.Send(m)
	}
	if err != nil {
		return fmt.Errorf("send review card: %w", err)
	}
	chatID := b.adminChatID
	if sent.Chat != nil {
		chatID = sent.Chat.ID
	}
	return b.moderation.AttachMessage(ctx, card.Case.ID, chatID, sent.MessageID)
}

func (b *Bot) caption(u db.User) string {
	dash := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "—"
		}
		return html.EscapeString(s)
	}
	age := "—"
	if u.Birthdate != nil {
		age = strconv.Itoa(view.Age(*u.Birthdate, b.now()))
	}
	tg := "—"
	if u.TelegramUsername != "" {
		tg = "@" + html.EscapeString(u.TelegramUsername)
	}

	lines := []string{
		fmt.Sprintf("👤<b>%s</b>, %s лет", dash(u.FirstName), age),
		"",
		"tg: " + tg,
		"inst: " + dash(u.InstagramUsername),
	}
	if about := strings.TrimSpace(u.About); about != "" {
		lines = append(lines, "", "✏️ Bio: <i>"+html.EscapeString(about)+"</i>")
	}
	return strings.Join(lines, "\n")
}

func keyboardFor(caseID uint64, flags int) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅", callbackData(actionApprove, caseID, 0)),
			tgbotapi.NewInlineKeyboardButtonData("🚫", callbackData(actionDecline, caseID, 0)),
		),
	}
	for _, f := range flagOrder {
		label := flagLabels[f]
		if flags&f != 0 {
			label = "➕ " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackData(actionToggle, caseID, f)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func callbackData(action string, caseID uint64, flag int) string {
	if action == actionToggle {
		return fmt.Sprintf("%s:%s:%d:%d", callbackPrefix, action, caseID, flag)
	}
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, action, caseID)
}

type callback struct {
	action string
	caseID uint64
	flag   int
}

// parseCallback reads "mod:<action>:<case>[:<flag>]".
func parseCallback(data string) (callback, bool) {
	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[0] != callbackPrefix {
		return callback{}, false
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil || id == 0 {
		return callback{}, false
	}
	cb := callback{action: parts[1], caseID: id}
	switch cb.action {
	case actionApprove, actionDecline:
		return cb, len(parts) == 3
	case actionToggle:
		if len(parts) != 4 {
			return callback{}, false
		}
		cb.flag, err = strconv.Atoi(parts[3])
		return cb, err == nil
	}
	return callback{}, false
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	cb, ok := parseCallback(q.Data)
	if !ok {
		b.answer(q, "Некорректные данные", true)
		return
	}
	if q.From == nil || q.Message == nil || q.Message.Chat == nil || q.Message.Chat.ID != b.adminChatID {
		b.answer(q, "Недоступно", true)
		return
	}

	switch cb.action {
	case actionToggle:
		c, err := b.moderation.ToggleFlag(ctx, cb.caseID, cb.flag)
		if err != nil {
			b.fail(q, cb, err)
			return
		}
		b.request(tgbotapi.NewEditMessageReplyMarkup(q.Message.Chat.ID, q.Message.MessageID, keyboardFor(c.ID, c.Flags)))
		b.answer(q, "", false)

	case actionApprove:
		c, err := b.moderation.Approve(ctx, cb.caseID, q.From.ID)
		if err != nil {
			b.fail(q, cb, err)
			return
		}
		b.finish(q, approvedLine(c.Flags, adminName(q.From)))
		b.answer(q, "Регистрация подтверждена", false)

	case actionDecline:
		if _, err := b.moderation.Decline(ctx, cb.caseID, q.From.ID); err != nil {
			b.fail(q, cb, err)
			return
		}
		b.finish(q, "🚫: "+adminName(q.From))
		b.answer(q, "Регистрация отклонена", false)
	}
}

func (b *Bot) fail(q *tgbotapi.CallbackQuery, cb callback, err error) {
	b.logger.Warn("moderation callback failed", "case", cb.caseID, "action", cb.action, "err", err)
	text := "Не удалось обработать действие"
	switch svcErr.KindOf(err) {
	case svcErr.KindNotFound:
		text = "Анкета не найдена"
	case svcErr.KindConflict:
		text = "Решение уже принято"
	}
	b.answer(q, text, true)
}

// finish prefixes the card with the decision and drops its keyboard.
func (b *Bot) finish(q *tgbotapi.CallbackQuery, status string) {
	chatID, msgID := q.Message.Chat.ID, q.Message.MessageID
	if len(q.Message.Photo) > 0 {
		base := q.Message.Caption
		edit := tgbotapi.NewEditMessageCaption(chatID, msgID, status+"\n\n"+html.EscapeString(base))
		edit.ParseMode = tgbotapi.ModeHTML
		b.request(edit)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, status+"\n\n"+html.EscapeString(q.Message.Text))
	edit.ParseMode = tgbotapi.ModeHTML
	b.request(edit)
}

func (b *Bot) answer(q *tgbotapi.CallbackQuery, text string, alert bool) {
	cfg := tgbotapi.NewCallback(q.ID, text)
	cfg.ShowAlert = alert
	b.request(cfg)
}

func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.client.Request(c); err != nil {
		b.logger.Warn("telegram request failed", "err", err)
	}
}

func approvedLine(flags int, admin string) string {
	var done []string
	for _, f := range flagOrder {
		if flags&f != 0 {
			done = append(done, flagActions[f])
		}
	}
	if len(done) == 0 {
		return "✅: " + admin
	}
	return fmt.Sprintf("✅ [%s]: %s", strings.Join(done, "/"), admin)
}

func adminName(u *tgbotapi.User) string {
	if u == nil {
		return "unknown"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return fmt.Sprintf("id%d", u.ID)
}
