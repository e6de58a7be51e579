package scorer

import (
	"sort"
	"strings"
	"time"

	"github-recommender/internal/domain"
)

// 各评分维度的权重，总和为 1，最终得分天然落在 [0,1]
const (
	weightKeyword   = 0.40
	weightLanguage  = 0.25
	weightStars     = 0.20
	weightFreshness = 0.10
	weightTopics    = 0.05

	// 排除条件的罚分：排除关键词直接扣在加权和上，排除主题把主题维度翻成这个值
	exclusionPenalty = -0.5

	// 低于该分数的仓库不值得推荐
	minScoreFloor = 0.1
)

// Scorer 实现了 port.Scorer 接口
// 纯计算，不依赖任何外部资源，时间可注入以便测试
type Scorer struct {
	nowFunc func() time.Time
}

// NewScorer 创建评分器
func NewScorer() *Scorer {
	return &Scorer{nowFunc: time.Now}
}

// PassesHardFilters 硬过滤：不满足的仓库直接出局，不参与评分
func (s *Scorer) PassesHardFilters(repo *domain.RepoCache, pref *domain.Preference) bool {
	if repo.IsArchived || repo.IsDisabled {
		return false
	}
	if repo.Stars < pref.MinStars {
		return false
	}
	if pref.MaxStars > 0 && repo.Stars > pref.MaxStars {
		return false
	}
	if pref.CreatedAfter != nil && repo.RepoCreatedAt.Before(*pref.CreatedAfter) {
		return false
	}
	if pref.UpdatedAfter != nil && lastActivity(repo).Before(*pref.UpdatedAfter) {
		return false
	}
	return true
}

// Score 对单个仓库计算 [0,1] 的综合评分，并返回结构化的评分理由
func (s *Scorer) Score(repo *domain.RepoCache, pref *domain.Preference) (float64, domain.Reasoning) {
	reason := domain.Reasoning{}

	// 关键词维度：命中比例。没配关键词时该维度不得分，权重照常参与归一
	keywordScore := 0.0
	if len(pref.Keywords) > 0 {
		haystack := repoText(repo)
		for _, kw := range pref.Keywords {
			if matchKeyword(haystack, kw) {
				reason.MatchedKeywords = append(reason.MatchedKeywords, kw)
			}
		}
		keywordScore = float64(len(reason.MatchedKeywords)) / float64(len(pref.Keywords))
	}

	// 语言维度：精确命中满分，互为子串算近似命中，仓库没标语言给保底分
	langScore := languageScore(repo.Language, pref.Languages)
	reason.LanguageMatch = langScore >= 0.7

	reason.StarScore = starScore(repo.Stars, pref)
	reason.FreshnessScore = s.freshnessScore(repo)

	// 主题维度：命中排除主题时整个维度翻成负分，压过加成
	if hasExcludedTopic(repo.Topics, pref.ExcludedTopics) {
		reason.TopicBonus = exclusionPenalty
	} else {
		reason.TopicBonus = topicBonus(repo.Topics, pref.Keywords)
	}

	// 排除关键词直接从加权和上扣，不走任何维度
	if len(pref.ExcludedKeywords) > 0 {
		haystack := repoText(repo)
		for _, kw := range pref.ExcludedKeywords {
			if matchKeyword(haystack, kw) {
				reason.ExcludedKeywords = append(reason.ExcludedKeywords, kw)
			}
		}
		if len(reason.ExcludedKeywords) > 0 {
			reason.ExclusionPenalty = exclusionPenalty
		}
	}

	total := weightKeyword*keywordScore +
		weightLanguage*langScore +
		weightStars*reason.StarScore +
		weightFreshness*reason.FreshnessScore +
		weightTopics*reason.TopicBonus +
		reason.ExclusionPenalty

	total = clamp01(total)
	reason.TotalScore = total
	return total, reason
}

// FilterRepositories 硬过滤 -> 评分 -> 去掉低分 -> 按分数稳定排序 -> 截断
// 同分仓库保持输入顺序，结果可复现
func (s *Scorer) FilterRepositories(repos []*domain.RepoCache, pref *domain.Preference) []domain.ScoredRepo {
	var scored []domain.ScoredRepo
	for _, repo := range repos {
		if !s.PassesHardFilters(repo, pref) {
			continue
		}
		score, reason := s.Score(repo, pref)
		if score <= minScoreFloor {
			continue
		}
		scored = append(scored, domain.ScoredRepo{Repo: repo, Score: score, Reason: reason})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if max := pref.MaxRecs(); len(scored) > max {
		scored = scored[:max]
	}
	return scored
}

// languageScore 语言维度得分
// 没限定语言时中性满分；精确命中 1.0；互为子串 0.7；仓库没标语言 0.1；其余 0
func languageScore(repoLang string, prefLangs []string) float64 {
	if len(prefLangs) == 0 {
		return 1.0
	}
	if repoLang == "" {
		return 0.1
	}
	lower := strings.ToLower(repoLang)
	best := 0.0
	for _, lang := range prefLangs {
		pl := strings.ToLower(lang)
		switch {
		case pl == lower:
			return 1.0
		case strings.Contains(lower, pl) || strings.Contains(pl, lower):
			best = 0.7
		}
	}
	return best
}

// hasExcludedTopic 仓库主题是否命中排除列表
func hasExcludedTopic(topics, excluded []string) bool {
	for _, topic := range topics {
		for _, ex := range excluded {
			if strings.EqualFold(topic, ex) {
				return true
			}
		}
	}
	return false
}

// starScore star 数映射到分档得分
// 处在偏好区间之外的仓库通常已被硬过滤掉，这里仍给出合理的值以便单独调用
func starScore(stars int, pref *domain.Preference) float64 {
	if stars < pref.MinStars {
		return 0.0
	}
	if pref.MaxStars > 0 && stars > pref.MaxStars {
		return 0.3
	}
	switch {
	case stars >= 10000:
		return 1.0
	case stars >= 1000:
		return 0.9
	case stars >= 100:
		return 0.7
	default:
		return 0.5
	}
}

// freshnessScore 最近活跃时间映射到分档得分，没有任何时间信息给保底分
func (s *Scorer) freshnessScore(repo *domain.RepoCache) float64 {
	last := lastActivity(repo)
	if last.IsZero() {
		return 0.1
	}
	age := s.nowFunc().Sub(last)
	switch {
	case age <= 7*24*time.Hour:
		return 1.0
	case age <= 30*24*time.Hour:
		return 0.8
	case age <= 90*24*time.Hour:
		return 0.6
	case age <= 365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// topicBonus 主题与关键词的互相印证，每个命中 +0.2，封顶 1.0
func topicBonus(topics, keywords []string) float64 {
	if len(topics) == 0 || len(keywords) == 0 {
		return 0.0
	}
	bonus := 0.0
	for _, topic := range topics {
		lower := strings.ToLower(topic)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				bonus += 0.2
				break
			}
		}
	}
	if bonus > 1.0 {
		bonus = 1.0
	}
	return bonus
}

// lastActivity 最近一次活动时间，优先用 push 时间
func lastActivity(repo *domain.RepoCache) time.Time {
	if repo.PushedAt != nil && !repo.PushedAt.IsZero() {
		return *repo.PushedAt
	}
	return repo.RepoUpdatedAt
}

// repoText 参与关键词匹配的文本：名称 + 全名 + 描述
func repoText(repo *domain.RepoCache) string {
	return strings.ToLower(repo.Name + " " + repo.FullName + " " + repo.Description)
}

// matchKeyword 大小写不敏感的子串匹配，"ai" 也会命中 "maintain" 这类包含关系
func matchKeyword(haystack, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	return strings.Contains(haystack, kw)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
