package main

import (
	"context"
	"fmt"
	"log"

	"github-recommender/internal/adapter/github"
	"github-recommender/internal/adapter/scorer"
	"github-recommender/internal/domain"
)

// 离线调试入口：不碰数据库和通知渠道，用演示模式的内置数据
// 走一遍 查询构造 -> 搜索 -> 评分 的管道，肉眼检查评分是否合理
func main() {
	fmt.Println("🔍 调试模式：演示数据走一遍推荐管道")

	searcher := github.NewSearcher("demo")
	builder := github.NewQueryBuilder()
	repoScorer := scorer.NewScorer()

	pref := &domain.Preference{
		Name:      "机器学习雷达",
		Keywords:  []string{"machine-learning", "deep-learning", "ai"},
		Languages: []string{"Python", "C++"},
		MinStars:  1000,
	}

	ctx := context.Background()

	queries := builder.BuildSearchQueries(pref)
	fmt.Printf("📐 偏好 %q 展开为 %d 条搜索请求\n", pref.DisplayName(), len(queries))

	seen := make(map[int64]bool)
	var repos []*domain.RepoCache
	for _, q := range queries {
		found, err := searcher.Search(ctx, q)
		if err != nil {
			log.Printf("❌ 搜索失败: %v", err)
			continue
		}
		for _, repo := range found {
			if seen[repo.RepoID] {
				continue
			}
			seen[repo.RepoID] = true
			repos = append(repos, repo)
		}
	}
	fmt.Printf("📥 去重后拿到 %d 个仓库\n", len(repos))

	scored := repoScorer.FilterRepositories(repos, pref)
	if len(scored) == 0 {
		fmt.Println("📭 没有仓库通过过滤")
		return
	}

	fmt.Printf("\n================ [ 推荐结果 (%d) ] ================\n", len(scored))
	for i, sr := range scored {
		fmt.Printf("%d. %s  ⭐%d  %s\n", i+1, sr.Repo.FullName, sr.Repo.Stars, sr.Repo.Language)
		fmt.Printf("   评分 %.2f | 命中关键词 %v | 语言匹配 %v | star %.1f | 新鲜度 %.1f\n",
			sr.Score, sr.Reason.MatchedKeywords, sr.Reason.LanguageMatch,
			sr.Reason.StarScore, sr.Reason.FreshnessScore)
	}
	fmt.Println("==================================================")
}
