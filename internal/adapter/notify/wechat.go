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

// WeChatSender 向企业微信群机器人 Webhook 推送 markdown 消息
type WeChatSender struct {
	client *http.Client
}

func NewWeChatSender(client *http.Client) *WeChatSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WeChatSender{client: client}
}

func (s *WeChatSender) Channel() string { return domain.ChannelWeChat }

func (s *WeChatSender) Configured(user *domain.User) bool {
	return user.WeChatWebhookURL != ""
}

// Send 企业微信要求 HTTP 200 且响应体 errcode 为 0 才算成功
func (s *WeChatSender) Send(ctx context.Context, user *domain.User, pref *domain.Preference, items []Item) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]interface{}{
			"content": renderWeChat(pref, items),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化企业微信消息失败: %w", err)
	}

	err = common.Do(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, user.WeChatWebhookURL, bytes.NewReader(body))
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
			return fmt.Errorf("企业微信 API 报错: 状态码 %d", resp.StatusCode)
		}

		var result struct {
			ErrCode int    `json:"errcode"`
			ErrMsg  string `json:"errmsg"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&result); decodeErr != nil {
			return fmt.Errorf("解析企业微信响应失败: %w", decodeErr)
		}
		if result.ErrCode != 0 {
			return fmt.Errorf("企业微信 API 报错: errcode=%d errmsg=%s", result.ErrCode, result.ErrMsg)
		}
		return nil
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("企业微信发送失败: %w", err)
	}
	return nil
}
