// Package alert sends suspicious-pattern alerts to a Telegram chat and lets
// operators triage them from there.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"agentwatch/internal/models"
	"agentwatch/internal/repository"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sender is the part of tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot posts findings at or above a minimum severity to one chat. Alerts carry
// inline buttons that move the finding to investigating or false_positive.
// A nil *Bot is a disabled bot; all its methods are no-ops.
type Bot struct {
	api         sender
	updates     func(ctx context.Context) tgbotapi.UpdatesChannel
	chatID      int64
	minSeverity models.Severity
	patternRepo repository.PatternRepository
	logger      *zap.Logger
}

// NewBot creates a new Telegram bot instance. It returns nil, nil when no token is configured.
func NewBot(token string, chatID int64, minSeverity models.Severity, patternRepo repository.PatternRepository, logger *zap.Logger) (*Bot, error) {
	if token == "" || chatID == 0 {
		logger.Info("Telegram alerts are disabled (token or chat id is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	b := newBot(botAPI, chatID, minSeverity, patternRepo, logger)
	b.updates = func(context.Context) tgbotapi.UpdatesChannel {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		return botAPI.GetUpdatesChan(u)
	}
	return b, nil
}

func newBot(api sender, chatID int64, minSeverity models.Severity, patternRepo repository.PatternRepository, logger *zap.Logger) *Bot {
	return &Bot{
		api:         api,
		chatID:      chatID,
		minSeverity: minSeverity,
		patternRepo: patternRepo,
		logger:      logger,
	}
}

// Start begins listening for updates from Telegram.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil || b.updates == nil {
		return nil
	}

	updates := b.updates(ctx)
	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			if api, ok := b.api.(*tgbotapi.BotAPI); ok {
				api.StopReceivingUpdates()
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

// Notify implements detector.Notifier.
func (b *Bot) Notify(_ context.Context, pattern *models.SuspiciousPattern) error {
	if b == nil {
		return nil
	}
	if pattern.Severity.Rank() < b.minSeverity.Rank() {
		return nil
	}

	msg := tgbotapi.NewMessage(b.chatID, formatPattern(pattern))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Investigate", callbackData(pattern.ID, models.StatusInvestigating)),
			tgbotapi.NewInlineKeyboardButtonData("✖ False positive", callbackData(pattern.ID, models.StatusFalsePositive)),
		),
	)

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send pattern alert",
			zap.Int64("chat_id", b.chatID),
			zap.String("pattern_id", pattern.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send alert: %w", err)
	}

	b.logger.Info("Pattern alert sent",
		zap.String("pattern_id", pattern.ID),
		zap.String("pattern_type", string(pattern.PatternType)),
		zap.String("severity", string(pattern.Severity)))
	return nil
}

func formatPattern(p *models.SuspiciousPattern) string {
	ids := make([]string, len(p.AgentIDs))
	for i, id := range p.AgentIDs {
		ids[i] = fmt.Sprint(id)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ %s (%s, confidence %d)\n\n", p.PatternType, p.Severity, p.ConfidenceScore)
	sb.WriteString(p.Description)
	fmt.Fprintf(&sb, "\n\nAgents: %s\n", strings.Join(ids, ", "))

	keys := make([]string, 0, len(p.Evidence))
	for k := range p.Evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", k, p.Evidence[k])
	}
	fmt.Fprintf(&sb, "\nID: %s", p.ID)
	return sb.String()
}

func callbackData(patternID string, status models.PatternStatus) string {
	return "status:" + patternID + ":" + string(status)
}

func parseCallbackData(data string) (string, models.PatternStatus, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != "status" || parts[1] == "" {
		return "", "", errors.New("invalid callback format")
	}
	status := models.PatternStatus(parts[2])
	if !status.Valid() {
		return "", "", fmt.Errorf("unknown status %q", parts[2])
	}
	return parts[1], status, nil
}

// handleCallbackQuery applies a triage button press.
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	b.logger.Info("Received callback query",
		zap.String("data", query.Data),
		zap.Int64("user_id", query.From.ID))

	callback := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}

	patternID, status, err := parseCallbackData(query.Data)
	if err != nil {
		b.logger.Error("Failed to parse callback data", zap.String("data", query.Data), zap.Error(err))
		b.sendMessage(query.From.ID, "❌ Could not process the request")
		return
	}

	if err := b.patternRepo.UpdatePatternStatus(patternID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.sendMessage(query.From.ID, "❌ Pattern not found")
			return
		}
		b.logger.Error("Failed to update pattern status", zap.String("pattern_id", patternID), zap.Error(err))
		b.sendMessage(query.From.ID, "❌ Failed to update status")
		return
	}

	b.logger.Info("Pattern triaged from Telegram",
		zap.String("pattern_id", patternID),
		zap.String("status", string(status)),
		zap.Int64("user_id", query.From.ID))

	if query.Message != nil {
		edit := tgbotapi.NewEditMessageText(
			query.Message.Chat.ID,
			query.Message.MessageID,
			query.Message.Text+"\n\n✅ Marked as "+string(status),
		)
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Error("Failed to edit message", zap.Error(err))
		}
	}
}

// handleMessage processes incoming commands.
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}
	switch message.Command() {
	case "start", "help":
		b.sendMessage(message.Chat.ID, "This bot posts suspicious agent activity.\n\n"+
			"/active - number of active findings\n"+
			"/help - this message\n\n"+
			"Use the buttons under an alert to mark it as investigating or a false positive.")
	case "active":
		patterns, err := b.patternRepo.GetPatterns(models.StatusActive)
		if err != nil {
			b.logger.Error("Failed to list active patterns", zap.Error(err))
			b.sendMessage(message.Chat.ID, "❌ Failed to load findings")
			return
		}
		b.sendMessage(message.Chat.ID, fmt.Sprintf("%d active findings", len(patterns)))
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help.")
	}
}

// sendMessage is a helper to send a simple text message.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
