package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github-recommender/internal/domain"
	"github-recommender/internal/port"
)

// ChannelSender 单个通知渠道的发送端
type ChannelSender interface {
	Channel() string
	// Configured 该用户是否配齐了这个渠道需要的目的地信息
	Configured(user *domain.User) bool
	Send(ctx context.Context, user *domain.User, pref *domain.Preference, items []Item) error
}

// Dispatcher 实现了 port.Notifier 接口
// 按偏好配置的渠道列表逐个投递：未配置的渠道静默跳过，
// 单渠道失败只记录不阻塞其他渠道，最后统一回写发送状态
type Dispatcher struct {
	cache   port.CacheStore
	recs    port.RecommendationStore
	senders map[string]ChannelSender
	nowFunc func() time.Time
}

// NewDispatcher 装配全部内置渠道
func NewDispatcher(cache port.CacheStore, recs port.RecommendationStore, telegramToken string) *Dispatcher {
	d := &Dispatcher{
		cache:   cache,
		recs:    recs,
		senders: make(map[string]ChannelSender),
		nowFunc: time.Now,
	}
	d.Register(&EmailSender{})
	d.Register(NewTelegramSender(telegramToken))
	d.Register(NewSlackSender(nil))
	d.Register(NewWeChatSender(nil))
	return d
}

// Register 注册渠道发送端，同名覆盖 (测试时注入假发送端用)
func (d *Dispatcher) Register(s ChannelSender) {
	d.senders[s.Channel()] = s
}

// Send 渲染并投递一批推荐，返回实际送达的渠道列表
func (d *Dispatcher) Send(ctx context.Context, user *domain.User, pref *domain.Preference, recs []*domain.Recommendation) ([]string, error) {
	if len(recs) == 0 || len(pref.NotificationChannels) == 0 {
		return nil, nil
	}

	items, err := d.buildItems(ctx, recs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	var sent []string
	for _, channel := range pref.NotificationChannels {
		sender, ok := d.senders[channel]
		if !ok {
			log.Printf("⚠️ 未知的通知渠道 %q，跳过", channel)
			continue
		}
		if !sender.Configured(user) {
			// 用户没配这个渠道，不算错误
			continue
		}

		if err := sender.Send(ctx, user, pref, items); err != nil {
			log.Printf("❌ 渠道 %s 发送失败: %v", channel, err)
			continue
		}
		fmt.Printf("   ✅ 渠道 %s 发送成功 (%d 条推荐)\n", channel, len(items))
		sent = append(sent, channel)
	}

	if len(sent) > 0 {
		recIDs := make([]uint, 0, len(recs))
		for _, rec := range recs {
			recIDs = append(recIDs, rec.ID)
		}
		if err := d.recs.MarkSent(ctx, recIDs, sent, d.nowFunc()); err != nil {
			return sent, fmt.Errorf("标记发送状态失败: %w", err)
		}
	}
	return sent, nil
}

// buildItems 取回推荐对应的仓库快照，缺快照的推荐跳过
func (d *Dispatcher) buildItems(ctx context.Context, recs []*domain.Recommendation) ([]Item, error) {
	repoIDs := make([]int64, 0, len(recs))
	for _, rec := range recs {
		repoIDs = append(repoIDs, rec.RepoID)
	}

	repos, err := d.cache.GetByRepoIDs(ctx, repoIDs)
	if err != nil {
		return nil, fmt.Errorf("查询仓库快照失败: %w", err)
	}
	byID := make(map[int64]*domain.RepoCache, len(repos))
	for _, repo := range repos {
		byID[repo.RepoID] = repo
	}

	var items []Item
	for _, rec := range recs {
		repo, ok := byID[rec.RepoID]
		if !ok {
			log.Printf("⚠️ 推荐 %d 对应的仓库快照 %d 不在缓存里，跳过渲染", rec.ID, rec.RepoID)
			continue
		}
		items = append(items, Item{Rec: rec, Repo: repo})
	}
	return items, nil
}

// SendTest 向指定渠道发一条固定的测试消息，验证用户配置是否可用
func (d *Dispatcher) SendTest(ctx context.Context, user *domain.User, channel string) error {
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("未知的通知渠道 %q", channel)
	}
	if !sender.Configured(user) {
		return fmt.Errorf("渠道 %s 尚未配置", channel)
	}

	now := d.nowFunc()
	pref := &domain.Preference{Name: "配置测试"}
	items := []Item{
		{
			Rec: &domain.Recommendation{
				Score:  0.99,
				Reason: domain.Reasoning{MatchedKeywords: []string{"test"}},
			},
			Repo: &domain.RepoCache{
				RepoID:        1,
				FullName:      "octocat/hello-world",
				Name:          "hello-world",
				Description:   "这是一条测试推送，收到说明渠道配置正常",
				Language:      "Go",
				Stars:         1,
				HTMLURL:       "https://github.com/octocat/hello-world",
				RepoUpdatedAt: now,
			},
		},
	}
	return sender.Send(ctx, user, pref, items)
}
