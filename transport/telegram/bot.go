package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/flarexio/qarelay"
)

const (
	greetingReply = "Hi, %s! I'm the support assistant. Ask me your question."

	helpReply = "Ask me a question about the product or service and I'll look " +
		"for an answer. If I can't find one, I'll forward your question to a manager."
)

const pollTimeout = 30 // seconds

// Bot routes Telegram messages through the answer pipeline: commands are
// handled inline, everything else is a question.
type Bot struct {
	api *tgbotapi.BotAPI
	svc qarelay.Service
	log *zap.Logger
}

func NewBot(api *tgbotapi.BotAPI, svc qarelay.Service) *Bot {
	log := zap.L().With(
		zap.String("transport", "telegram"),
	)

	return &Bot{
		api: api,
		svc: svc,
		log: log,
	}
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout

	updates := b.api.GetUpdatesChan(cfg)

	b.log.Info("polling started", zap.String("bot", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("polling stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				return nil
			}

			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	log := b.log.With(
		zap.Int64("user_id", msg.From.ID),
	)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(msg, fmt.Sprintf(greetingReply, msg.From.FirstName))
		case "help":
			b.reply(msg, helpReply)
		default:
			log.Warn("unknown command", zap.String("command", msg.Command()))
		}

		return
	}

	q := qarelay.Question{
		UserID:   strconv.FormatInt(msg.From.ID, 10),
		UserName: userName(msg.From),
		Text:     msg.Text,
	}

	reply, err := b.svc.Ask(ctx, q)
	if err != nil {
		log.Error("ask failed", zap.Error(err))
		b.reply(msg, qarelay.ErrorReply)
		return
	}

	b.reply(msg, reply.Text)
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID

	if _, err := b.api.Send(out); err != nil {
		b.log.Error("send failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err),
		)
	}
}

func userName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}

	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}

	return name
}
