package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github-recommender/internal/common"
	"github-recommender/internal/domain"
	"github-recommender/internal/port"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RateLimitPolicy 搜索配额见底后对剩余配置的处理策略
type RateLimitPolicy int

const (
	// AbortOnLimit 放弃本次运行剩余的全部配置，避免继续撞限额
	AbortOnLimit RateLimitPolicy = iota
	// DeferPreference 只把当前配置标记为受限，剩余配置继续处理
	DeferPreference
)

// JobService 推荐任务的编排层
// 一次运行 = 读取用户启用的偏好配置，逐个走完
// 搜索 -> 缓存 -> 评分 -> 落库 -> 通知 的管道，最后汇总计数
type JobService struct {
	builder  port.QueryBuilder
	searcher port.Searcher
	scorer   port.Scorer
	cache    port.CacheStore
	recs     port.RecommendationStore
	users    port.UserStore
	prefs    port.PreferenceStore
	runs     port.JobRunStore
	cleaner  port.MaintenanceStore
	notifier port.Notifier

	logger zerolog.Logger

	// 缓存保质期，窗口内的快照可以替代线上搜索
	cacheWindow time.Duration
	// 缓存短路时一次最多捞多少条快照
	cacheLimit int
	// 命中速率限制后的策略，默认整轮放弃
	limitPolicy RateLimitPolicy

	nowFunc func() time.Time
}

// SetRateLimitPolicy 切换速率限制策略，需在触发任务前调用
func (s *JobService) SetRateLimitPolicy(p RateLimitPolicy) {
	s.limitPolicy = p
}

// NewJobService 创建推荐任务服务
func NewJobService(
	builder port.QueryBuilder,
	searcher port.Searcher,
	scorer port.Scorer,
	cache port.CacheStore,
	recs port.RecommendationStore,
	users port.UserStore,
	prefs port.PreferenceStore,
	runs port.JobRunStore,
	cleaner port.MaintenanceStore,
	notifier port.Notifier,
	logger zerolog.Logger,
	cacheWindow time.Duration,
) *JobService {
	if cacheWindow <= 0 {
		cacheWindow = time.Hour
	}
	return &JobService{
		builder:     builder,
		searcher:    searcher,
		scorer:      scorer,
		cache:       cache,
		recs:        recs,
		users:       users,
		prefs:       prefs,
		runs:        runs,
		cleaner:     cleaner,
		notifier:    notifier,
		logger:      logger,
		cacheWindow: cacheWindow,
		cacheLimit:  200,
		nowFunc:     time.Now,
	}
}

// TriggerRun 创建一条任务记录并同步执行，返回执行后的最新状态
// preferenceID 为 0 表示处理该用户全部启用的配置
func (s *JobService) TriggerRun(ctx context.Context, userID, preferenceID uint, forceRefresh bool, triggerType string) (*domain.JobRun, error) {
	run := &domain.JobRun{
		UserID:        userID,
		PreferenceID:  preferenceID,
		Status:        domain.JobStatusQueued,
		TriggerType:   triggerType,
		ExternalJobID: uuid.NewString(),
		JobConfig: domain.JobConfig{
			PreferenceID: preferenceID,
			ForceRefresh: forceRefresh,
		},
	}
	if err := s.runs.CreateJobRun(ctx, run); err != nil {
		return nil, err
	}

	execErr := s.ExecuteRecommendationJob(ctx, run.ID)

	latest, err := s.runs.GetJobRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return latest, execErr
}

// ExecuteRecommendationJob 执行一次推荐任务
// 状态流转单调: queued -> running -> {completed, failed}
// 单个配置失败只记录并继续；速率限制放弃剩余配置但任务仍算完成
func (s *JobService) ExecuteRecommendationJob(ctx context.Context, jobRunID uint) error {
	run, err := s.runs.GetJobRun(ctx, jobRunID)
	if err != nil {
		return err
	}
	if !run.CanTransition(domain.JobStatusRunning) {
		return common.NewError(common.ErrCodeInvalidInput,
			fmt.Sprintf("任务 %d 当前状态 %s 不允许启动", run.ID, run.Status))
	}

	now := s.nowFunc()
	run.Status = domain.JobStatusRunning
	run.StartedAt = &now
	if err := s.runs.UpdateJobRun(ctx, run); err != nil {
		return err
	}

	s.logger.Info().
		Uint("job_run_id", run.ID).
		Uint("user_id", run.UserID).
		Str("trigger", run.TriggerType).
		Msg("推荐任务开始")
	fmt.Printf("🚀 [任务 %d] 开始为用户 %d 生成推荐...\n", run.ID, run.UserID)

	results, execErr := s.execute(ctx, run)

	finished := s.nowFunc()
	run.FinishedAt = &finished
	run.Results = results
	run.Counters = domain.Aggregate(results)

	if execErr != nil {
		run.Status = domain.JobStatusFailed
		run.ErrorMessage = execErr.Error()
		s.logger.Error().Err(execErr).Uint("job_run_id", run.ID).Msg("推荐任务失败")
	} else {
		run.Status = domain.JobStatusCompleted
		s.logger.Info().
			Uint("job_run_id", run.ID).
			Int("recommendations", run.Counters.RecommendationsGenerated).
			Int("errors", run.Counters.ErrorsCount).
			Dur("duration", run.Duration()).
			Msg("推荐任务完成")
		fmt.Printf("🎉 [任务 %d] 完成: %d 条推荐, %d 个配置处理成功, %d 个出错\n",
			run.ID, run.Counters.RecommendationsGenerated,
			run.Counters.PreferencesProcessed, run.Counters.ErrorsCount)
	}

	if err := s.runs.UpdateJobRun(ctx, run); err != nil {
		return err
	}
	return execErr
}

// execute 任务主体，返回逐配置的处理结果
// 返回 error 表示运行级失败 (用户不存在、配置读不出来这类)
func (s *JobService) execute(ctx context.Context, run *domain.JobRun) ([]domain.PreferenceResult, error) {
	user, err := s.users.GetUser(ctx, run.UserID)
	if err != nil {
		return nil, err
	}

	prefs, err := s.prefs.ListEnabledPreferences(ctx, run.UserID, run.JobConfig.PreferenceID)
	if err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		// 不算失败，但提示信息要落在运行记录上，状态查询才看得到
		run.ErrorMessage = "没有找到启用的推荐配置"
		fmt.Printf("ℹ️ [任务 %d] 没有找到启用的推荐配置\n", run.ID)
		return nil, nil
	}

	var results []domain.PreferenceResult
	for _, pref := range prefs {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		fmt.Printf("📋 [任务 %d] 处理配置 %q...\n", run.ID, pref.DisplayName())
		result, rateLimited := s.processPreference(ctx, user, pref, run)
		results = append(results, result)

		if rateLimited {
			if s.limitPolicy == DeferPreference {
				fmt.Printf("⏭️ [任务 %d] 命中 GitHub 速率限制，配置 %q 顺延，继续处理剩余配置\n",
					run.ID, pref.DisplayName())
				continue
			}
			// 配额已经见底，剩下的配置这一轮不碰了
			fmt.Printf("⛔ [任务 %d] 命中 GitHub 速率限制，跳过剩余 %d 个配置\n",
				run.ID, len(prefs)-len(results))
			break
		}
	}
	return results, nil
}

// processPreference 单个偏好配置走完整条管道
// 返回的 rateLimited 为 true 时调用方应放弃本次运行剩余的配置
func (s *JobService) processPreference(ctx context.Context, user *domain.User, pref *domain.Preference, run *domain.JobRun) (domain.PreferenceResult, bool) {
	result := domain.PreferenceResult{
		PreferenceID:   pref.ID,
		PreferenceName: pref.DisplayName(),
		Status:         domain.PrefStatusSuccess,
	}

	// 1. 拿仓库快照：缓存够新就不打扰 GitHub
	repos, fromCache, err := s.collectRepos(ctx, pref, run.JobConfig.ForceRefresh)
	if err != nil {
		if common.IsRateLimit(err) {
			result.Status = domain.PrefStatusRateLimited
			result.Error = err.Error()
			return result, true
		}
		log.Printf("❌ 配置 %q 搜索失败: %v", pref.DisplayName(), err)
		result.Status = domain.PrefStatusFailed
		result.Error = err.Error()
		return result, false
	}
	result.ReposFetched = len(repos)

	// 2. 写入缓存 (缓存短路时快照本来就在库里，不用重写)
	if !fromCache {
		saved, err := s.cache.UpsertRepos(ctx, repos)
		if err != nil {
			result.Status = domain.PrefStatusFailed
			result.Error = err.Error()
			return result, false
		}
		repos = saved
	}
	result.ReposCached = len(repos)
	fmt.Printf("   💾 拿到 %d 个仓库快照 (缓存短路: %v)\n", len(repos), fromCache)

	// 3. 硬过滤 + 评分 + 截断
	scored := s.scorer.FilterRepositories(repos, pref)
	result.ReposFiltered = len(scored)
	fmt.Printf("   🧮 评分后剩余 %d 个候选\n", len(scored))

	// 4. 落库为推荐
	recs, err := s.recs.SaveRecommendations(ctx, user.ID, pref.ID, run.ID, scored)
	if err != nil {
		result.Status = domain.PrefStatusFailed
		result.Error = err.Error()
		return result, false
	}
	result.Recommendations = len(recs)

	// 5. 推送通知。通知挂了不拖垮整个配置，推荐已经落库了
	if len(recs) > 0 && len(pref.NotificationChannels) > 0 {
		sent, err := s.notifier.Send(ctx, user, pref, recs)
		if err != nil {
			log.Printf("⚠️ 配置 %q 通知投递出错: %v", pref.DisplayName(), err)
		}
		result.ChannelsSent = sent
	}

	return result, false
}

// collectRepos 缓存短路或线上搜索，返回快照和是否来自缓存
func (s *JobService) collectRepos(ctx context.Context, pref *domain.Preference, forceRefresh bool) ([]*domain.RepoCache, bool, error) {
	if !forceRefresh {
		cached, err := s.cache.RecentlyFetched(ctx, s.cacheWindow, s.cacheLimit)
		if err != nil {
			log.Printf("⚠️ 查询缓存失败，退回线上搜索: %v", err)
		} else if len(cached) > 0 {
			return cached, true, nil
		}
	}

	queries := s.builder.BuildSearchQueries(pref)
	fmt.Printf("   🔍 展开为 %d 条搜索请求\n", len(queries))

	seen := make(map[int64]bool)
	var all []*domain.RepoCache
	var lastErr error
	for _, q := range queries {
		repos, err := s.searcher.Search(ctx, q)
		if err != nil {
			// 配额见底必须立刻上抛；普通失败跳过这一条，剩余请求还能捞到部分结果
			if common.IsRateLimit(err) {
				return nil, false, err
			}
			log.Printf("⚠️ 单条搜索请求失败，继续执行剩余请求: %v", err)
			lastErr = err
			continue
		}
		for _, repo := range repos {
			if seen[repo.RepoID] {
				continue
			}
			seen[repo.RepoID] = true
			all = append(all, repo)
		}
	}
	if len(all) == 0 && lastErr != nil {
		return nil, false, lastErr
	}
	return all, false, nil
}

// RunStatus 查询一次运行的最新状态
func (s *JobService) RunStatus(ctx context.Context, jobRunID uint) (*domain.JobRun, error) {
	return s.runs.GetJobRun(ctx, jobRunID)
}

// LatestRecommendations 用户最近的推荐列表
func (s *JobService) LatestRecommendations(ctx context.Context, userID uint, limit int) ([]*domain.Recommendation, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.recs.ListLatest(ctx, userID, limit)
}

// RunForAllAutoUsers 给所有开启定时推荐的用户各跑一轮，定时调度入口
func (s *JobService) RunForAllAutoUsers(ctx context.Context) error {
	users, err := s.users.ListAutoUsers(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("⏰ 定时任务触发，共 %d 个用户开启了自动推荐\n", len(users))

	for _, user := range users {
		if _, err := s.TriggerRun(ctx, user.ID, 0, false, domain.TriggerScheduled); err != nil {
			log.Printf("❌ 用户 %d 的定时推荐失败: %v", user.ID, err)
		}
	}
	return nil
}

// CleanupOldData 按保留期清理过期的缓存和已完结的运行记录
func (s *JobService) CleanupOldData(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cutoff := s.nowFunc().AddDate(0, 0, -retentionDays)

	repos, err := s.cleaner.CleanupReposOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	runs, err := s.cleaner.CleanupJobRuns(ctx, cutoff)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("repos_deleted", repos).
		Int64("job_runs_deleted", runs).
		Int("retention_days", retentionDays).
		Msg("过期数据清理完成")
	fmt.Printf("🧹 清理完成: 删除 %d 条缓存快照, %d 条运行记录\n", repos, runs)
	return nil
}
