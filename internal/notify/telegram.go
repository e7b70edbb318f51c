package notify

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/luvo/internal/metrics"
)

const openAppLabel = "Открыть приложение"

var templates = map[Kind]string{
	KindLikeReceived:       "Кому-то понравился твой профиль ❤️ Узнай, кто это",
	KindMatch:              "Совпадение! 🔥 У вас взаимный интерес — начни общение",
	KindModerationApproved: "Твоя анкета прошла модерацию. Часть данных скрыта по правилам сообщества.",
	KindModerationDeclined: "Твоя анкета отклонена модератором. Создай новый аккаунт, соблюдая правила сообщества.",
}

// Sender is the slice of *tgbotapi.BotAPI the dispatcher needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type job struct {
	chatID int64
	kind   Kind
}

// Dispatcher queues notifications and sends them from a fixed set of
// workers. A full queue drops the message.
type Dispatcher struct {
	sender    Sender
	webAppURL string
	queue     chan job
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

func NewDispatcher(sender Sender, webAppURL string, workers, queueSize int, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		sender:    sender,
		webAppURL: webAppURL,
		queue:     make(chan job, queueSize),
		workers:   workers,
		logger:    logger,
		metrics:   m,
	}
}

// Start launches the workers. They exit once Stop drains the queue.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.send(j)
			}
		}()
	}
}

// Stop closes the queue and waits for pending messages.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) Notify(_ context.Context, telegramUserID int64, kind Kind) {
	if telegramUserID == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.record(kind, "dropped")
		return
	}

	select {
	case d.queue <- job{chatID: telegramUserID, kind: kind}:
	default:
		d.record(kind, "dropped")
		d.logger.Warn("notification queue full, dropping", "tg_user", telegramUserID, "kind", kind)
	}
}

func (d *Dispatcher) send(j job) {
	text, ok := templates[j.kind]
	if !ok {
		d.logger.Error("unknown notification kind", "kind", j.kind)
		return
	}

	msg := tgbotapi.NewMessage(j.chatID, text)
	if d.webAppURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(openAppLabel, d.webAppURL)),
		)
	}

	if _, err := d.sender.Send(msg); err != nil {
		d.record(j.kind, "error")
		d.logger.Error("send notification failed", "tg_user", j.chatID, "kind", j.kind, "err", err)
		return
	}
	d.record(j.kind, "sent")
}

func (d *Dispatcher) record(kind Kind, status string) {
	if d.metrics != nil {
		d.metrics.Notifications.WithLabelValues(string(kind), status).Inc()
	}
}
