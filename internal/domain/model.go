package domain

import (
	"fmt"
	"time"
)

// 通知渠道名称
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelSlack    = "slack"
	ChannelWeChat   = "wechat"
)

// JobRun 状态
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// 任务触发方式
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerWebhook   = "webhook"
)

// 单个配置的处理结果状态
const (
	PrefStatusSuccess     = "success"
	PrefStatusFailed      = "failed"
	PrefStatusRateLimited = "rate_limited"
)

// User 系统用户，内嵌各通知渠道的目的地配置
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"uniqueIndex;size:255"`
	Username string `json:"username" gorm:"size:100"`

	// 通知目的地 (为空表示该渠道未配置)
	NotificationEmail string `json:"notification_email" gorm:"size:255"`
	TelegramChatID    string `json:"telegram_chat_id" gorm:"size:100"`
	SlackWebhookURL   string `json:"slack_webhook_url" gorm:"size:500"`
	WeChatWebhookURL  string `json:"wechat_webhook_url" gorm:"size:500"`

	// 用户级 SMTP 配置，用于邮件通知
	SMTPHost     string `json:"smtp_host" gorm:"size:255"`
	SMTPPort     int    `json:"smtp_port" gorm:"default:587"`
	SMTPUsername string `json:"smtp_username" gorm:"size:255"`
	SMTPPassword string `json:"-" gorm:"size:255"`
	SMTPUseTLS   bool   `json:"smtp_use_tls" gorm:"default:true"`

	// 定时推荐设置
	AutoRecommend          bool `json:"auto_recommend"`
	RecommendIntervalHours int  `json:"recommend_interval_hours" gorm:"default:24"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preference 用户保存的一套搜索偏好 + 通知路由
// 任务管道只读它，禁用后不再参与任何运行，但不撤回历史推荐
type Preference struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"index"`

	// 搜索条件
	Keywords     []string   `json:"keywords" gorm:"serializer:json"`
	Languages    []string   `json:"languages" gorm:"serializer:json"`
	MinStars     int        `json:"min_stars" gorm:"default:10"`
	MaxStars     int        `json:"max_stars"` // 0 表示不设上限
	CreatedAfter *time.Time `json:"created_after"`
	UpdatedAfter *time.Time `json:"updated_after"`

	// 排除条件
	ExcludedTopics   []string `json:"excluded_topics" gorm:"serializer:json"`
	ExcludedKeywords []string `json:"excluded_keywords" gorm:"serializer:json"`

	// 通知设置
	NotificationChannels []string `json:"notification_channels" gorm:"serializer:json"`
	RunCron              string   `json:"run_cron" gorm:"size:100;default:'0 9 * * *'"`
	MaxRecommendations   int      `json:"max_recommendations" gorm:"default:10"`

	Enabled     bool   `json:"enabled" gorm:"default:true"`
	Name        string `json:"name" gorm:"size:200"`
	Description string `json:"description" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate 在写入前校验偏好配置的自洽性
func (p *Preference) Validate() error {
	if p.MinStars < 0 {
		return fmt.Errorf("min_stars 不能为负数: %d", p.MinStars)
	}
	if p.MaxStars != 0 && p.MaxStars < p.MinStars {
		return fmt.Errorf("max_stars (%d) 不能小于 min_stars (%d)", p.MaxStars, p.MinStars)
	}
	if p.MaxRecommendations < 0 || p.MaxRecommendations > 50 {
		return fmt.Errorf("max_recommendations 必须在 1-50 之间: %d", p.MaxRecommendations)
	}
	return nil
}

// MaxRecs 返回推荐数上限，未设置时取默认值 10
func (p *Preference) MaxRecs() int {
	if p.MaxRecommendations <= 0 {
		return 10
	}
	return p.MaxRecommendations
}

// DisplayName 配置的展示名，没起名字时退回 ID
func (p *Preference) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("配置#%d", p.ID)
}

// RepoCache 仓库快照缓存，按 GitHub 仓库 ID 全局唯一
// 重复抓取只覆盖可变字段并刷新 fetched_at，不产生新行
type RepoCache struct {
	ID     uint  `json:"-" gorm:"primaryKey"`
	RepoID int64 `json:"repo_id" gorm:"uniqueIndex"`

	FullName   string `json:"full_name" gorm:"size:255;index"`
	Name       string `json:"name" gorm:"size:255"`
	OwnerLogin string `json:"owner_login" gorm:"size:100"`

	Description string   `json:"description" gorm:"type:text"`
	Topics      []string `json:"topics" gorm:"serializer:json"`
	Language    string   `json:"language" gorm:"size:50;index"`
	LicenseName string   `json:"license_name" gorm:"size:100"`

	Stars      int `json:"stargazers_count" gorm:"index"`
	Forks      int `json:"forks_count"`
	Watchers   int `json:"watchers_count"`
	OpenIssues int `json:"open_issues_count"`
	Size       int `json:"size"` // 单位 KB

	HTMLURL  string `json:"html_url" gorm:"size:500"`
	CloneURL string `json:"clone_url" gorm:"size:500"`
	Homepage string `json:"homepage" gorm:"size:500"`

	IsPrivate  bool `json:"is_private"`
	IsFork     bool `json:"is_fork"`
	IsArchived bool `json:"is_archived"`
	IsDisabled bool `json:"is_disabled"`

	// GitHub 侧的三个时间戳，不交给 gorm 自动维护
	RepoCreatedAt time.Time  `json:"created_at" gorm:"column:repo_created_at"`
	RepoUpdatedAt time.Time  `json:"updated_at" gorm:"column:repo_updated_at"`
	PushedAt      *time.Time `json:"pushed_at"`

	FetchedAt time.Time `json:"fetched_at" gorm:"index"`
}

// TableName 沿用既有表名
func (RepoCache) TableName() string { return "repo_cache" }

// Valid 校验快照是否具备最基本的身份字段
// 缓存写入时对不合法的快照跳过，而不是让整批失败
func (r *RepoCache) Valid() error {
	if r.RepoID == 0 {
		return fmt.Errorf("仓库快照缺少 repo_id")
	}
	if r.FullName == "" {
		return fmt.Errorf("仓库快照缺少 full_name")
	}
	return nil
}

// Reasoning 评分过程的结构化解释，会原样展示给用户
type Reasoning struct {
	MatchedKeywords  []string `json:"matched_keywords"`
	ExcludedKeywords []string `json:"excluded_keywords"`
	LanguageMatch    bool     `json:"language_match"`
	StarScore        float64  `json:"star_score"`
	FreshnessScore   float64  `json:"freshness_score"`
	TopicBonus       float64  `json:"topic_bonus"`
	ExclusionPenalty float64  `json:"exclusion_penalty"`
	TotalScore       float64  `json:"total_score"`
}

// ScoredRepo 通过硬过滤并完成评分的仓库
type ScoredRepo struct {
	Repo   *RepoCache
	Score  float64
	Reason Reasoning
}

// Recommendation 用户-仓库维度的最新推荐状态
// 每个 (user_id, repo_id) 至多一行，重复推荐原地覆盖而不是追加
type Recommendation struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID uint  `json:"user_id" gorm:"index;uniqueIndex:idx_rec_user_repo"`
	RepoID int64 `json:"repo_id" gorm:"index;uniqueIndex:idx_rec_user_repo"`

	Score  float64   `json:"score" gorm:"index"`
	Reason Reasoning `json:"reason" gorm:"serializer:json"`

	// 通知投递记录，发送前为空
	SentChannels []string   `json:"sent_channels" gorm:"serializer:json"`
	SentAt       *time.Time `json:"sent_at"`

	PreferenceID uint `json:"preference_id" gorm:"index"`
	JobRunID     uint `json:"job_run_id" gorm:"index"`

	// 重复推荐时会刷新，使旧推荐重新浮出为"新"
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// SearchQuery 一条搜索请求的描述符，由查询构造器生成
// 具体的 provider 查询串由 github 适配器负责序列化
type SearchQuery struct {
	Keywords     []string
	Language     string
	MinStars     int
	CreatedAfter *time.Time
	UpdatedAfter *time.Time
}

// JobConfig 触发任务时的配置快照
type JobConfig struct {
	PreferenceID uint `json:"preference_id,omitempty"`
	ForceRefresh bool `json:"force_refresh"`
}

// RunCounters 运行级汇总计数，由各配置的结果求和得出
type RunCounters struct {
	ReposFetched             int `json:"repos_fetched"`
	ReposCached              int `json:"repos_cached"`
	ReposFiltered            int `json:"repos_filtered"`
	RecommendationsGenerated int `json:"recommendations_generated"`
	NotificationsSent        int `json:"notifications_sent"`
	PreferencesProcessed     int `json:"preferences_processed"`
	ErrorsCount              int `json:"errors_count"`
}

// PreferenceResult 单个偏好配置在一次运行中的处理结果
type PreferenceResult struct {
	PreferenceID    uint     `json:"preference_id"`
	PreferenceName  string   `json:"preference_name"`
	Status          string   `json:"status"`
	ReposFetched    int      `json:"repos_fetched"`
	ReposCached     int      `json:"repos_cached"`
	ReposFiltered   int      `json:"repos_filtered"`
	Recommendations int      `json:"recommendations_generated"`
	ChannelsSent    []string `json:"channels_sent"`
	Error           string   `json:"error,omitempty"`
}

// Aggregate 把逐配置的结果汇总成运行级计数
func Aggregate(results []PreferenceResult) RunCounters {
	var c RunCounters
	for _, r := range results {
		c.ReposFetched += r.ReposFetched
		c.ReposCached += r.ReposCached
		c.ReposFiltered += r.ReposFiltered
		c.RecommendationsGenerated += r.Recommendations
		c.NotificationsSent += len(r.ChannelsSent)
		switch r.Status {
		case PrefStatusSuccess:
			c.PreferencesProcessed++
		default:
			c.ErrorsCount++
		}
	}
	return c
}

// JobRun 一次推荐任务的执行记录
type JobRun struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	UserID       uint `json:"user_id" gorm:"index"`
	PreferenceID uint `json:"preference_id" gorm:"index"` // 0 表示处理全部启用的配置

	Status      string `json:"status" gorm:"size:20;index;default:'queued'"`
	TriggerType string `json:"trigger_type" gorm:"size:20;default:'manual'"`

	StartedAt  *time.Time `json:"started_at" gorm:"index"`
	FinishedAt *time.Time `json:"finished_at"`

	Counters  RunCounters        `json:"counters" gorm:"serializer:json"`
	Results   []PreferenceResult `json:"results" gorm:"serializer:json"`
	JobConfig JobConfig          `json:"job_config" gorm:"serializer:json"`

	ErrorMessage  string `json:"error_message" gorm:"type:text"`
	ExternalJobID string `json:"external_job_id" gorm:"size:100;index"`

	CreatedAt time.Time `json:"created_at"`
}

// CanTransition 校验状态流转是否合法
// 只允许 queued -> running -> {completed, failed, cancelled}，终态不可回退
func (j *JobRun) CanTransition(next string) bool {
	switch j.Status {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}

// Finished 是否已进入终态
func (j *JobRun) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// Duration 任务耗时，未结束返回 0
func (j *JobRun) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
