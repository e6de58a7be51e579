package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github-recommender/internal/adapter/github"
	"github-recommender/internal/adapter/notify"
	"github-recommender/internal/adapter/repository"
	"github-recommender/internal/adapter/scorer"
	"github-recommender/internal/config"
	"github-recommender/internal/domain"
	"github-recommender/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

func main() {
	// 1. 命令行参数
	mode := flag.String("mode", "run", "运行模式: run (单次推荐) / schedule (定时) / status (查任务) / list (查推荐) / test (测试渠道) / cleanup (清理)")
	userID := flag.Uint("user", 0, "用户 ID")
	prefID := flag.Uint("pref", 0, "偏好配置 ID，0 表示全部启用的配置")
	force := flag.Bool("force", false, "跳过缓存，强制线上搜索")
	runID := flag.Uint("run", 0, "任务记录 ID (status 模式)")
	limit := flag.Int("limit", 20, "返回条数 (list 模式)")
	channel := flag.String("channel", "email", "要测试的通知渠道 (test 模式)")
	flag.Parse()

	// 2. 配置和日志
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}
	logger := newLogger(cfg.AppEnv)

	// 3. 装配依赖
	repoStore, err := repository.NewPostgresRepo(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("❌ DB 初始化失败: %v", err)
	}

	searcher := github.NewSearcher(cfg.GitHubToken)
	builder := github.NewQueryBuilder()
	repoScorer := scorer.NewScorer()
	dispatcher := notify.NewDispatcher(repoStore, repoStore, cfg.TelegramBotToken)

	jobService := service.NewJobService(
		builder, searcher, repoScorer,
		repoStore, repoStore, repoStore, repoStore, repoStore, repoStore,
		dispatcher, logger,
		time.Duration(cfg.CacheWindowMinutes)*time.Minute,
	)

	jobTimeout := time.Duration(cfg.JobTimeoutMinutes) * time.Minute

	// 4. 按模式分流
	switch *mode {
	case "run":
		runOnce(jobService, *userID, *prefID, *force, jobTimeout)
	case "schedule":
		runScheduled(jobService, cfg.ScheduleCron, jobTimeout)
	case "status":
		showStatus(jobService, *runID)
	case "list":
		listRecommendations(jobService, *userID, *limit)
	case "test":
		testChannel(dispatcher, repoStore, *userID, *channel)
	case "cleanup":
		runCleanup(jobService, cfg.RetentionDays)
	default:
		fmt.Println("❌ 未知模式，可选: run / schedule / status / list / test / cleanup")
	}
}

// newLogger 开发环境用彩色控制台输出，其他环境输出 JSON
func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// runOnce 为单个用户同步执行一次推荐任务
func runOnce(svc *service.JobService, userID, prefID uint, force bool, timeout time.Duration) {
	if userID == 0 {
		fmt.Println("⚠️ 请用 -user 指定用户 ID")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	run, err := svc.TriggerRun(ctx, userID, prefID, force, domain.TriggerManual)
	if err != nil {
		log.Printf("❌ 推荐任务执行出错: %v", err)
	}
	if run != nil {
		printRun(run)
	}
}

// runScheduled cron 定时模式，按表达式给所有开启自动推荐的用户跑任务
func runScheduled(svc *service.JobService, cronExpr string, timeout time.Duration) {
	c := cron.New()
	_, err := c.AddFunc(cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := svc.RunForAllAutoUsers(ctx); err != nil {
			log.Printf("❌ 定时推荐出错: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("❌ cron 表达式 %q 不合法: %v", cronExpr, err)
	}

	c.Start()
	defer c.Stop()
	fmt.Printf("⏰ 定时模式已启动 (cron: %s)\n", cronExpr)
	fmt.Println("按下 Ctrl+C 可以优雅停止程序")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\n👋 收到停止信号，正在退出...")
}

// showStatus 打印一次运行的状态和逐配置结果
func showStatus(svc *service.JobService, runID uint) {
	if runID == 0 {
		fmt.Println("⚠️ 请用 -run 指定任务记录 ID")
		return
	}

	run, err := svc.RunStatus(context.Background(), runID)
	if err != nil {
		log.Printf("❌ 查询失败: %v", err)
		return
	}
	printRun(run)
}

func printRun(run *domain.JobRun) {
	fmt.Printf("\n================ [ 任务 %d ] ================\n", run.ID)
	fmt.Printf("状态: %s | 触发方式: %s | 外部ID: %s\n", run.Status, run.TriggerType, run.ExternalJobID)
	if run.Finished() {
		fmt.Printf("耗时: %s\n", run.Duration())
	}
	if run.ErrorMessage != "" {
		fmt.Printf("错误: %s\n", run.ErrorMessage)
	}
	fmt.Printf("计数: 抓取 %d / 入缓存 %d / 过滤后 %d / 推荐 %d / 通知 %d\n",
		run.Counters.ReposFetched, run.Counters.ReposCached,
		run.Counters.ReposFiltered, run.Counters.RecommendationsGenerated,
		run.Counters.NotificationsSent)
	for _, r := range run.Results {
		fmt.Printf("  - %s: %s (%d 条推荐)\n", r.PreferenceName, r.Status, r.Recommendations)
		if r.Error != "" {
			fmt.Printf("    错误: %s\n", r.Error)
		}
	}
	fmt.Println("==============================================")
}

// listRecommendations 打印用户最近的推荐
func listRecommendations(svc *service.JobService, userID uint, limit int) {
	if userID == 0 {
		fmt.Println("⚠️ 请用 -user 指定用户 ID")
		return
	}

	recs, err := svc.LatestRecommendations(context.Background(), userID, limit)
	if err != nil {
		log.Printf("❌ 查询失败: %v", err)
		return
	}
	if len(recs) == 0 {
		fmt.Println("📭 还没有任何推荐。先运行 -mode=run 生成一批！")
		return
	}

	fmt.Printf("\n🎯 用户 %d 最近的 %d 条推荐:\n", userID, len(recs))
	for i, rec := range recs {
		sent := "未发送"
		if len(rec.SentChannels) > 0 {
			sent = fmt.Sprintf("已发送: %v", rec.SentChannels)
		}
		fmt.Printf("%2d. 仓库 %d | 评分 %.2f | %s | %s\n",
			i+1, rec.RepoID, rec.Score, rec.CreatedAt.Format("2006-01-02 15:04"), sent)
	}
}

// testChannel 向指定渠道发一条测试消息，验证配置
func testChannel(dispatcher *notify.Dispatcher, repoStore *repository.PostgresRepo, userID uint, channel string) {
	if userID == 0 {
		fmt.Println("⚠️ 请用 -user 指定用户 ID")
		return
	}

	user, err := repoStore.GetUser(context.Background(), userID)
	if err != nil {
		log.Printf("❌ 查询用户失败: %v", err)
		return
	}

	if err := dispatcher.SendTest(context.Background(), user, channel); err != nil {
		log.Printf("❌ 渠道 %s 测试失败: %v", channel, err)
		return
	}
	fmt.Printf("✅ 渠道 %s 测试消息已发出，请检查是否收到\n", channel)
}

// runCleanup 清理过期缓存和已完结的运行记录
func runCleanup(svc *service.JobService, retentionDays int) {
	if err := svc.CleanupOldData(context.Background(), retentionDays); err != nil {
		log.Printf("❌ 清理失败: %v", err)
	}
}
