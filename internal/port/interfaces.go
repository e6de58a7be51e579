package port

import (
	"context"
	"time"

	"github-recommender/internal/domain"
)

// QueryBuilder (参谋): 把一个偏好展开成一组搜索请求描述符
type QueryBuilder interface {
	BuildSearchQueries(pref *domain.Preference) []domain.SearchQuery
}

// Searcher (侦察兵): 执行一条搜索请求，返回归一化的仓库快照
// 命中速率限制时返回 common.RateLimitError，由编排层决定如何收场
type Searcher interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]*domain.RepoCache, error)
}

// Scorer (评委): 硬过滤 + 加权评分
type Scorer interface {
	// Score 对单个仓库计算 [0,1] 评分和结构化理由
	Score(repo *domain.RepoCache, pref *domain.Preference) (float64, domain.Reasoning)

	// FilterRepositories 硬过滤、评分、按分数截断到 max_recommendations
	FilterRepositories(repos []*domain.RepoCache, pref *domain.Preference) []domain.ScoredRepo
}

// CacheStore (仓库缓存管理员): 按 repo_id 幂等地存取仓库快照
type CacheStore interface {
	// UpsertRepos 逐条 upsert，坏快照跳过不中断整批
	UpsertRepos(ctx context.Context, repos []*domain.RepoCache) ([]*domain.RepoCache, error)

	// RecentlyFetched 返回 window 时间内抓取过的缓存，用于跳过重复的线上查询
	RecentlyFetched(ctx context.Context, window time.Duration, limit int) ([]*domain.RepoCache, error)

	// GetByRepoIDs 按仓库 ID 批量取缓存 (通知渲染用)
	GetByRepoIDs(ctx context.Context, repoIDs []int64) ([]*domain.RepoCache, error)
}

// RecommendationStore (推荐管理员): (user, repo) 维度的最新状态表
type RecommendationStore interface {
	// SaveRecommendations 按 (user_id, repo_id) upsert，重复推荐原地覆盖并刷新 created_at
	SaveRecommendations(ctx context.Context, userID uint, preferenceID, jobRunID uint, scored []domain.ScoredRepo) ([]*domain.Recommendation, error)

	// MarkSent 把同一批推荐统一盖上发送渠道和发送时间
	MarkSent(ctx context.Context, recIDs []uint, channels []string, at time.Time) error

	// ListLatest 用户最近的推荐 (状态查询用)
	ListLatest(ctx context.Context, userID uint, limit int) ([]*domain.Recommendation, error)
}

// UserStore 用户查询
type UserStore interface {
	GetUser(ctx context.Context, id uint) (*domain.User, error)

	// ListAutoUsers 开启了定时推荐的活跃用户
	ListAutoUsers(ctx context.Context) ([]*domain.User, error)
}

// PreferenceStore 偏好配置查询
type PreferenceStore interface {
	// ListEnabledPreferences preferenceID 为 0 时返回用户全部启用的配置
	ListEnabledPreferences(ctx context.Context, userID, preferenceID uint) ([]*domain.Preference, error)

	SavePreference(ctx context.Context, pref *domain.Preference) error
}

// JobRunStore 任务运行记录的持久化，状态流转必须单调
type JobRunStore interface {
	CreateJobRun(ctx context.Context, run *domain.JobRun) error
	GetJobRun(ctx context.Context, id uint) (*domain.JobRun, error)
	UpdateJobRun(ctx context.Context, run *domain.JobRun) error
}

// MaintenanceStore (清洁工): 按保留期清理过期数据
type MaintenanceStore interface {
	// CleanupReposOlderThan 删除 fetched_at 早于 cutoff 的缓存，返回删除行数
	CleanupReposOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// CleanupJobRuns 删除 cutoff 之前创建且已进入终态的运行记录
	CleanupJobRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier (信使): 渲染并投递一批推荐，返回成功的渠道列表
// 单渠道失败只记录不阻塞其他渠道
type Notifier interface {
	Send(ctx context.Context, user *domain.User, pref *domain.Preference, recs []*domain.Recommendation) ([]string, error)
}
