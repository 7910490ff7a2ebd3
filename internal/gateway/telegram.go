package gateway

import (
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMessageLimit = 4096

type TelegramGateway struct {
	Bot *tgbotapi.BotAPI
}

func NewTelegramGateway(token string) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{Bot: bot}, nil
}

func (tg *TelegramGateway) Name() string { return "telegram" }

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, part := range chunk(text, telegramMessageLimit) {
		msg := tgbotapi.NewMessage(id, part)
		msg.ParseMode = "Markdown"
		if _, err := tg.Bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}
