package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/market-insights/internal/adapters/config"
	"github.com/selivandex/market-insights/pkg/logger"
	"github.com/selivandex/market-insights/pkg/models"
)

// Notifier sends operational alerts and daily digests to a Telegram
// chat. A nil *Notifier is a valid no-op, so wiring stays unconditional
// even when the bot is not configured.
type Notifier struct {
	bot           *tgbotapi.BotAPI
	chatID        int64
	alertOnErrors bool
	dailySummary  bool
}

// New creates a notifier, or nil when no bot token is configured
func New(cfg *config.TelegramConfig) (*Notifier, error) {
	if cfg.BotToken == "" {
		logger.Info("telegram notifications disabled")
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info("telegram notifier initialized",
		zap.String("bot", bot.Self.UserName),
	)
	return &Notifier{
		bot:           bot,
		chatID:        cfg.ChatID,
		alertOnErrors: cfg.AlertOnErrors,
		dailySummary:  cfg.DailySummary,
	}, nil
}

// AlertError reports a failed background run
func (n *Notifier) AlertError(component string, err error) {
	if n == nil || !n.alertOnErrors {
		return
	}
	text := fmt.Sprintf("⚠️ *%s failed*\n`%s`", component, err.Error())
	n.send(text)
}

// SendDailySummary posts the finished daily analytics record
func (n *Notifier) SendDailySummary(record models.DailyAnalyticsRecord) {
	if n == nil || !n.dailySummary {
		return
	}

	text := fmt.Sprintf(
		"📊 *Daily sentiment — %s*\nOverall: %.3f\nArticles: %d\nBatches: %d",
		record.Date,
		record.OverallSentimentScore,
		record.ArticlesAnalyzed,
		record.BatchesProcessed,
	)
	if record.Note != "" {
		text += "\n_" + record.Note + "_"
	}
	n.send(text)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		logger.Warn("failed to send telegram message", zap.Error(err))
	}
}
