package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github-recommender/internal/common"
	"github-recommender/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresRepo 同时实现了 port 里的五个存储接口
// CacheStore / RecommendationStore / UserStore / PreferenceStore / JobRunStore
type PostgresRepo struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "连接数据库失败", err)
	}

	// 自动迁移 (Auto Migrate)，字段变更也会自动跟进
	err = db.AutoMigrate(
		&domain.User{},
		&domain.Preference{},
		&domain.RepoCache{},
		&domain.Recommendation{},
		&domain.JobRun{},
	)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "数据库迁移失败", err)
	}

	return &PostgresRepo{db: db, nowFunc: time.Now}, nil
}

// NewPostgresRepoWithDB 直接注入连接，测试用
func NewPostgresRepoWithDB(db *gorm.DB) *PostgresRepo {
	return &PostgresRepo{db: db, nowFunc: time.Now}
}

// ---------- CacheStore ----------

// UpsertRepos 按 repo_id 逐条 upsert 仓库快照
// 不合法的快照跳过，单条失败不中断整批，返回成功写入的那部分
func (r *PostgresRepo) UpsertRepos(ctx context.Context, repos []*domain.RepoCache) ([]*domain.RepoCache, error) {
	now := r.nowFunc()

	var saved []*domain.RepoCache
	for _, repo := range repos {
		if err := repo.Valid(); err != nil {
			log.Printf("⚠️ 跳过不合法的仓库快照: %v", err)
			continue
		}
		repo.FetchedAt = now

		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "repo_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"full_name", "name", "owner_login",
					"description", "topics", "language", "license_name",
					"stars", "forks", "watchers", "open_issues", "size",
					"html_url", "clone_url", "homepage",
					"is_private", "is_fork", "is_archived", "is_disabled",
					"repo_created_at", "repo_updated_at", "pushed_at",
					"fetched_at",
				}),
			}).
			Create(repo).Error
		if err != nil {
			log.Printf("❌ 缓存仓库 %s 失败: %v", repo.FullName, err)
			continue
		}
		saved = append(saved, repo)
	}

	return saved, nil
}

// RecentlyFetched 返回 window 时间内抓取过的快照，按 star 数降序
func (r *PostgresRepo) RecentlyFetched(ctx context.Context, window time.Duration, limit int) ([]*domain.RepoCache, error) {
	cutoff := r.nowFunc().Add(-window)

	var repos []*domain.RepoCache
	err := r.db.WithContext(ctx).
		Where("fetched_at > ?", cutoff).
		Order("stars DESC").
		Limit(limit).
		Find(&repos).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询缓存失败", err)
	}
	return repos, nil
}

// GetByRepoIDs 按仓库 ID 批量取缓存
func (r *PostgresRepo) GetByRepoIDs(ctx context.Context, repoIDs []int64) ([]*domain.RepoCache, error) {
	if len(repoIDs) == 0 {
		return nil, nil
	}

	var repos []*domain.RepoCache
	err := r.db.WithContext(ctx).
		Where("repo_id IN ?", repoIDs).
		Find(&repos).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询缓存失败", err)
	}
	return repos, nil
}

// CleanupReposOlderThan 删除 fetched_at 早于 cutoff 的缓存，返回删除行数
func (r *PostgresRepo) CleanupReposOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("fetched_at < ?", cutoff).
		Delete(&domain.RepoCache{})
	if result.Error != nil {
		return 0, common.WrapError(common.ErrCodeDatabase, "清理缓存失败", result.Error)
	}
	return result.RowsAffected, nil
}

// ---------- RecommendationStore ----------

// SaveRecommendations 按 (user_id, repo_id) 维持最新状态
// 已存在的推荐原地覆盖分数和理由，并刷新 created_at 使其重新浮出
func (r *PostgresRepo) SaveRecommendations(ctx context.Context, userID uint, preferenceID, jobRunID uint, scored []domain.ScoredRepo) ([]*domain.Recommendation, error) {
	now := r.nowFunc()

	var recs []*domain.Recommendation
	for _, sr := range scored {
		var existing domain.Recommendation
		err := r.db.WithContext(ctx).
			Where("user_id = ? AND repo_id = ?", userID, sr.Repo.RepoID).
			First(&existing).Error

		switch {
		case err == nil:
			existing.Score = sr.Score
			existing.Reason = sr.Reason
			existing.PreferenceID = preferenceID
			existing.JobRunID = jobRunID
			existing.CreatedAt = now
			if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return nil, common.WrapError(common.ErrCodeDatabase, "更新推荐失败", err)
			}
			recs = append(recs, &existing)

		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := &domain.Recommendation{
				UserID:       userID,
				RepoID:       sr.Repo.RepoID,
				Score:        sr.Score,
				Reason:       sr.Reason,
				PreferenceID: preferenceID,
				JobRunID:     jobRunID,
				CreatedAt:    now,
			}
			if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
				return nil, common.WrapError(common.ErrCodeDatabase, "保存推荐失败", err)
			}
			recs = append(recs, rec)

		default:
			return nil, common.WrapError(common.ErrCodeDatabase, "查询推荐失败", err)
		}
	}

	return recs, nil
}

// MarkSent 把同一批推荐统一盖上发送渠道和发送时间
func (r *PostgresRepo) MarkSent(ctx context.Context, recIDs []uint, channels []string, at time.Time) error {
	if len(recIDs) == 0 || len(channels) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Model(&domain.Recommendation{}).
		Where("id IN ?", recIDs).
		Updates(&domain.Recommendation{
			SentChannels: channels,
			SentAt:       &at,
		}).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "标记发送状态失败", err)
	}
	return nil
}

// ListLatest 用户最近的推荐，新鲜的和高分的排前面
func (r *PostgresRepo) ListLatest(ctx context.Context, userID uint, limit int) ([]*domain.Recommendation, error) {
	var recs []*domain.Recommendation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, score DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询推荐失败", err)
	}
	return recs, nil
}

// ---------- UserStore ----------

// GetUser 按 ID 取用户
func (r *PostgresRepo) GetUser(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.ErrCodeNotFound, fmt.Sprintf("用户 %d 不存在", id))
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询用户失败", err)
	}
	return &user, nil
}

// ListAutoUsers 开启了定时推荐的活跃用户
func (r *PostgresRepo) ListAutoUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := r.db.WithContext(ctx).
		Where("auto_recommend = ? AND is_active = ?", true, true).
		Find(&users).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询用户失败", err)
	}
	return users, nil
}

// ---------- PreferenceStore ----------

// ListEnabledPreferences preferenceID 为 0 时返回用户全部启用的配置
func (r *PostgresRepo) ListEnabledPreferences(ctx context.Context, userID, preferenceID uint) ([]*domain.Preference, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND enabled = ?", userID, true)
	if preferenceID != 0 {
		query = query.Where("id = ?", preferenceID)
	}

	var prefs []*domain.Preference
	err := query.Order("id").Find(&prefs).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询偏好配置失败", err)
	}
	return prefs, nil
}

// SavePreference 校验后保存偏好配置
func (r *PostgresRepo) SavePreference(ctx context.Context, pref *domain.Preference) error {
	if err := pref.Validate(); err != nil {
		return common.WrapError(common.ErrCodeInvalidInput, "偏好配置不合法", err)
	}
	if err := r.db.WithContext(ctx).Save(pref).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存偏好配置失败", err)
	}
	return nil
}

// ---------- JobRunStore ----------

// CreateJobRun 创建任务运行记录
func (r *PostgresRepo) CreateJobRun(ctx context.Context, run *domain.JobRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "创建任务记录失败", err)
	}
	return nil
}

// GetJobRun 按 ID 取任务运行记录
func (r *PostgresRepo) GetJobRun(ctx context.Context, id uint) (*domain.JobRun, error) {
	var run domain.JobRun
	err := r.db.WithContext(ctx).First(&run, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.ErrCodeNotFound, fmt.Sprintf("任务记录 %d 不存在", id))
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询任务记录失败", err)
	}
	return &run, nil
}

// UpdateJobRun 整体覆盖任务运行记录，状态流转的合法性由调用方保证
func (r *PostgresRepo) UpdateJobRun(ctx context.Context, run *domain.JobRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, "更新任务记录失败", err)
	}
	return nil
}

// CleanupJobRuns 删除 cutoff 之前创建且已进入终态的运行记录
func (r *PostgresRepo) CleanupJobRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", cutoff, []string{
			domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled,
		}).
		Delete(&domain.JobRun{})
	if result.Error != nil {
		return 0, common.WrapError(common.ErrCodeDatabase, "清理任务记录失败", result.Error)
	}
	return result.RowsAffected, nil
}
