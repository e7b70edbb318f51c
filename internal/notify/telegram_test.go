package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/luvo/internal/logger"
	"github.com/oggyb/luvo/internal/metrics"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	fail bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return tgbotapi.Message{}, errors.New("telegram down")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestDispatcher_SendsWithOpenAppButton(t *testing.T) {
	sender := &fakeSender{}
	m := metrics.New("test")
	d := NewDispatcher(sender, "https://app.example", 2, 8, logger.Nop(), m)
	d.Start()

	d.Notify(context.Background(), 101, KindLikeReceived)
	d.Notify(context.Background(), 102, KindMatch)
	d.Notify(context.Background(), 0, KindMatch) // no chat, skipped
	d.Stop()

	require.Len(t, sender.sent, 2)
	chats := []int64{sender.sent[0].ChatID, sender.sent[1].ChatID}
	assert.ElementsMatch(t, []int64{101, 102}, chats)

	markup, ok := sender.sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://app.example", *markup.InlineKeyboard[0][0].URL)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(string(KindMatch), "sent")))
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{fail: true}
	m := metrics.New("test")
	d := NewDispatcher(sender, "", 1, 1, logger.Nop(), m)
	d.Start()

	d.Notify(context.Background(), 5, KindMatch)
	d.Stop()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(string(KindMatch), "error")))
}

func TestDispatcher_DropsAfterStop(t *testing.T) {
	m := metrics.New("test")
	d := NewDispatcher(&fakeSender{}, "", 1, 1, logger.Nop(), m)
	d.Start()
	d.Stop()
	d.Stop()

	d.Notify(context.Background(), 5, KindLikeReceived)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(string(KindLikeReceived), "dropped")))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	m := metrics.New("test")
	// workers never started, so the single slot stays occupied
	d := NewDispatcher(&fakeSender{}, "", 1, 1, logger.Nop(), m)

	d.Notify(context.Background(), 1, KindMatch)
	d.Notify(context.Background(), 2, KindMatch)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues(string(KindMatch), "dropped")))
}
