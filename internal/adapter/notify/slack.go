package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github-recommender/internal/common"
	"github-recommender/internal/domain"
)

// SlackSender 向用户配置的 Incoming Webhook 推送 Block Kit 消息
type SlackSender struct {
	client *http.Client
}

func NewSlackSender(client *http.Client) *SlackSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackSender{client: client}
}

func (s *SlackSender) Channel() string { return domain.ChannelSlack }

func (s *SlackSender) Configured(user *domain.User) bool {
	return user.SlackWebhookURL != ""
}

// Send 构造 Block Kit 结构并推送，带重试
func (s *SlackSender) Send(ctx context.Context, user *domain.User, pref *domain.Preference, items []Item) error {
	payload := map[string]interface{}{
		"text":   fmt.Sprintf("🎯 %s：为你找到 %d 个仓库", pref.DisplayName(), len(items)),
		"blocks": renderSlackBlocks(pref, items),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化 Slack 消息失败: %w", err)
	}

	err = common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, user.SlackWebhookURL, bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, postErr := s.client.Do(req)
		if postErr != nil {
			return postErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("Slack API 报错: 状态码 %d", resp.StatusCode)
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("Slack 发送失败: %w", err)
	}
	return nil
}
