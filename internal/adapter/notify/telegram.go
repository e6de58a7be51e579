package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github-recommender/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender 通过系统级 Bot Token 给各用户的 chat 发消息
// Bot 实例懒加载，创建时 tgbotapi 会做一次 getMe 探活
type TelegramSender struct {
	token string

	once    sync.Once
	bot     *tgbotapi.BotAPI
	initErr error
}

func NewTelegramSender(token string) *TelegramSender {
	return &TelegramSender{token: token}
}

func (s *TelegramSender) Channel() string { return domain.ChannelTelegram }

// Configured 需要系统有 Bot Token 且用户填了 chat id
func (s *TelegramSender) Configured(user *domain.User) bool {
	return s.token != "" && user.TelegramChatID != ""
}

func (s *TelegramSender) client() (*tgbotapi.BotAPI, error) {
	s.once.Do(func() {
		s.bot, s.initErr = tgbotapi.NewBotAPI(s.token)
	})
	return s.bot, s.initErr
}

// Send 渲染 Markdown 并发送
func (s *TelegramSender) Send(ctx context.Context, user *domain.User, pref *domain.Preference, items []Item) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	chatID, err := strconv.ParseInt(user.TelegramChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("Telegram chat id 不合法 %q: %w", user.TelegramChatID, err)
	}

	bot, err := s.client()
	if err != nil {
		return fmt.Errorf("Telegram Bot 初始化失败: %w", err)
	}

	msg := tgbotapi.NewMessage(chatID, renderTelegram(pref, items))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("Telegram 发送失败: %w", err)
	}
	return nil
}
