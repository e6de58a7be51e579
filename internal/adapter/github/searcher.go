package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github-recommender/internal/common"
	"github-recommender/internal/domain"

	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"
)

// Searcher 实现了 port.Searcher 接口
type Searcher struct {
	client   *github.Client
	perPage  int
	maxPages int
	demoMode bool
	nowFunc  func() time.Time
}

// NewSearcher 初始化 GitHub 客户端
// token 为空或为 "demo" 时进入演示模式，返回内置的模拟数据，方便离线调试
func NewSearcher(token string) *Searcher {
	s := &Searcher{
		perPage:  50,
		maxPages: 2,
		nowFunc:  time.Now,
	}

	switch token {
	case "", "demo", "test":
		s.demoMode = true
		s.client = github.NewClient(nil)
	default:
		ctx := context.Background()
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(ctx, ts)
		s.client = github.NewClient(tc)
	}

	return s
}

// Search 执行一条搜索请求，翻页收集并归一化为仓库快照
// 命中速率限制时返回 common.RateLimitError，不做重试
func (s *Searcher) Search(ctx context.Context, q domain.SearchQuery) ([]*domain.RepoCache, error) {
	if s.demoMode {
		return s.demoSearch(q), nil
	}

	query := buildQueryString(q)
	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			PerPage: s.perPage,
		},
	}

	var all []*domain.RepoCache
	for page := 1; page <= s.maxPages; page++ {
		opts.Page = page

		var result *github.RepositoriesSearchResult
		err := common.Do(ctx, func() error {
			var apiErr error
			result, _, apiErr = s.client.Search.Repositories(ctx, query, opts)
			return apiErr
		},
			common.WithMaxRetries(3),
			common.WithInitialDelay(time.Second),
			// 速率限制重试只会雪上加霜，直接上抛
			common.WithRetryIf(func(err error) bool { return !isRateLimited(err) }),
		)
		if err != nil {
			if reset, ok := rateLimitReset(err); ok {
				return nil, common.NewRateLimitError(reset)
			}
			return nil, fmt.Errorf("GitHub API 调用失败: %w", err)
		}

		for _, item := range result.Repositories {
			all = append(all, convertRepo(item))
		}

		// 最后一页或结果已经取完就停
		if len(result.Repositories) < s.perPage || len(all) >= result.GetTotal() {
			break
		}
	}

	return all, nil
}

// isRateLimited 判断是否是 go-github 的速率限制错误
func isRateLimited(err error) bool {
	var rle *github.RateLimitError
	var arle *github.AbuseRateLimitError
	return errors.As(err, &rle) || errors.As(err, &arle)
}

// rateLimitReset 提取配额恢复时间
func rateLimitReset(err error) (time.Time, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return rle.Rate.Reset.Time, true
	}
	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) {
		reset := time.Now()
		if arle.RetryAfter != nil {
			reset = reset.Add(*arle.RetryAfter)
		}
		return reset, true
	}
	return time.Time{}, false
}

// convertRepo 把 GitHub 的数据结构转换为我们的缓存快照 (DTO 转换)
func convertRepo(item *github.Repository) *domain.RepoCache {
	repo := &domain.RepoCache{
		RepoID:        item.GetID(),
		FullName:      item.GetFullName(),
		Name:          item.GetName(),
		OwnerLogin:    item.GetOwner().GetLogin(),
		Description:   item.GetDescription(),
		Topics:        item.Topics,
		Language:      item.GetLanguage(),
		LicenseName:   item.GetLicense().GetName(),
		Stars:         item.GetStargazersCount(),
		Forks:         item.GetForksCount(),
		Watchers:      item.GetWatchersCount(),
		OpenIssues:    item.GetOpenIssuesCount(),
		Size:          item.GetSize(),
		HTMLURL:       item.GetHTMLURL(),
		CloneURL:      item.GetCloneURL(),
		Homepage:      item.GetHomepage(),
		IsPrivate:     item.GetPrivate(),
		IsFork:        item.GetFork(),
		IsArchived:    item.GetArchived(),
		IsDisabled:    item.GetDisabled(),
		RepoCreatedAt: item.GetCreatedAt().Time,
		RepoUpdatedAt: item.GetUpdatedAt().Time,
	}
	if pushed := item.GetPushedAt(); !pushed.Time.IsZero() {
		t := pushed.Time
		repo.PushedAt = &t
	}
	return repo
}
