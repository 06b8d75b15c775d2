package telegram

import (
	"cpsys/internal"
	"cpsys/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// Bot pushes one-way operational notifications, fault reports mostly, to a
// configured chat. Notify never blocks the caller; messages are dropped when
// the send buffer is full.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatId int64
	logger internal.LogHandler
	events chan string
}

func NewBot(conf *config.Config, logger internal.LogHandler) (*Bot, error) {
	if !conf.Telegram.Enabled {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(conf.Telegram.ApiKey)
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		api:    api,
		chatId: conf.Telegram.ChatId,
		logger: logger,
		events: make(chan string, 50),
	}
	go bot.sender()
	return bot, nil
}

func (b *Bot) sender() {
	for text := range b.events {
		message := tgbotapi.NewMessage(b.chatId, text)
		if _, err := b.api.Send(message); err != nil {
			b.logger.Error("telegram send failed", err)
		}
	}
}

func (b *Bot) Notify(text string) {
	if b == nil {
		return
	}
	select {
	case b.events <- text:
	default:
		b.logger.Warn("telegram notification buffer full, message dropped")
	}
}

func (b *Bot) Stop() {
	if b == nil {
		return
	}
	close(b.events)
}
