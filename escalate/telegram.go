package escalate

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of the Telegram bot API used for delivery. The bot
// client satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramNotifier delivers escalations straight to the manager chat
// through the bot API.
func NewTelegramNotifier(bot Sender, managerChatID int64) Notifier {
	return &telegramNotifier{
		bot:    bot,
		chatID: managerChatID,
	}
}

type telegramNotifier struct {
	bot    Sender
	chatID int64
}

func (n *telegramNotifier) Notify(ctx context.Context, esc Escalation) error {
	text := fmt.Sprintf(
		"❗️ *New question from user* ❗️\n\n*From:* %s (ID: %s)\n*Question:* %s",
		esc.UserName, esc.UserID, esc.Question,
	)

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	_, err := n.bot.Send(msg)
	return err
}
