package scorer

import (
	"testing"
	"time"

	"github-recommender/internal/domain"

	"github.com/stretchr/testify/assert"
)

func testScorer(now time.Time) *Scorer {
	return &Scorer{nowFunc: func() time.Time { return now }}
}

func TestScorer_Score(t *testing.T) {
	now := time.Now()
	fresh := now.AddDate(0, 0, -2)

	tests := []struct {
		name   string
		repo   *domain.RepoCache
		pref   *domain.Preference
		verify func(*testing.T, float64, domain.Reasoning)
	}{
		{
			name: "关键词部分命中的加权和",
			repo: &domain.RepoCache{
				Name:          "awesome-ai",
				FullName:      "octocat/awesome-ai",
				Description:   "curated list of ai resources",
				Language:      "Python",
				Stars:         15000,
				RepoUpdatedAt: fresh,
				PushedAt:      &fresh,
			},
			pref: &domain.Preference{
				Keywords:  []string{"ai", "ml"},
				Languages: []string{"Python"},
				MinStars:  100,
			},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				// 0.40*0.5 + 0.25*1.0 + 0.20*1.0 + 0.10*1.0 + 0.05*0 = 0.75
				assert.InDelta(t, 0.75, score, 0.001)
				assert.Equal(t, []string{"ai"}, reason.MatchedKeywords)
				assert.True(t, reason.LanguageMatch)
				assert.Equal(t, 1.0, reason.StarScore)
				assert.Equal(t, 1.0, reason.FreshnessScore)
			},
		},
		{
			name: "关键词按子串匹配包含关系也算命中",
			repo: &domain.RepoCache{
				Name:          "maintain-tools",
				FullName:      "octocat/maintain-tools",
				Description:   "tools to maintain large repos",
				Language:      "Go",
				Stars:         500,
				RepoUpdatedAt: fresh,
			},
			pref: &domain.Preference{
				Keywords: []string{"ai"},
			},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				assert.Equal(t, []string{"ai"}, reason.MatchedKeywords)
			},
		},
		{
			name: "没配关键词时该维度不得分但语言维度保持中性",
			repo: &domain.RepoCache{
				Name:          "anything",
				FullName:      "octocat/anything",
				Language:      "Rust",
				Stars:         2000,
				RepoUpdatedAt: fresh,
				PushedAt:      &fresh,
			},
			pref: &domain.Preference{},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				// 0.40*0 + 0.25 + 0.20*0.9 + 0.10*1.0 = 0.53
				assert.InDelta(t, 0.53, score, 0.001)
				assert.Empty(t, reason.MatchedKeywords)
				assert.True(t, reason.LanguageMatch)
			},
		},
		{
			name: "命中排除关键词要挨罚",
			repo: &domain.RepoCache{
				Name:          "crypto-miner",
				FullName:      "octocat/crypto-miner",
				Description:   "blockchain crypto mining",
				Language:      "Go",
				Stars:         15000,
				RepoUpdatedAt: fresh,
				PushedAt:      &fresh,
			},
			pref: &domain.Preference{
				Keywords:         []string{"crypto"},
				ExcludedKeywords: []string{"blockchain"},
			},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				assert.Equal(t, []string{"blockchain"}, reason.ExcludedKeywords)
				assert.Equal(t, -0.5, reason.ExclusionPenalty)
				// 0.40 + 0.25 + 0.20 + 0.10 - 0.5 = 0.45
				assert.InDelta(t, 0.45, score, 0.001)
			},
		},
		{
			name: "命中排除主题时主题维度翻成负分",
			repo: &domain.RepoCache{
				Name:          "game-engine",
				FullName:      "octocat/game-engine",
				Description:   "a tiny game engine",
				Topics:        []string{"gaming", "cryptocurrency"},
				Language:      "C++",
				Stars:         300,
				RepoUpdatedAt: fresh,
			},
			pref: &domain.Preference{
				Keywords:         []string{"engine"},
				ExcludedTopics:   []string{"cryptocurrency"},
				ExcludedKeywords: []string{"game"},
			},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				assert.Equal(t, -0.5, reason.TopicBonus)
				assert.Equal(t, -0.5, reason.ExclusionPenalty)
				// 0.40 + 0.25 + 0.20*0.7 + 0.10 + 0.05*(-0.5) - 0.5 = 0.365
				assert.InDelta(t, 0.365, score, 0.001)
			},
		},
		{
			name: "主题加成封顶",
			repo: &domain.RepoCache{
				Name:          "ml-box",
				FullName:      "octocat/ml-box",
				Description:   "ml toolbox",
				Topics:        []string{"ml-1", "ml-2", "ml-3", "ml-4", "ml-5", "ml-6"},
				Language:      "Python",
				Stars:         200,
				RepoUpdatedAt: fresh,
			},
			pref: &domain.Preference{
				Keywords: []string{"ml"},
			},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				assert.Equal(t, 1.0, reason.TopicBonus)
			},
		},
		{
			name: "没有任何时间信息时新鲜度给保底分",
			repo: &domain.RepoCache{
				Name:     "ghost",
				FullName: "octocat/ghost",
				Stars:    50,
			},
			pref: &domain.Preference{},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				assert.Equal(t, 0.1, reason.FreshnessScore)
			},
		},
		{
			name: "得分不会低于 0",
			repo: &domain.RepoCache{
				Name:        "bad-repo",
				FullName:    "octocat/bad-repo",
				Description: "spam spam spam",
				Stars:       1,
			},
			pref: &domain.Preference{
				Keywords:         []string{"ai"},
				Languages:        []string{"Go"},
				MinStars:         100,
				ExcludedKeywords: []string{"spam"},
			},
			verify: func(t *testing.T, score float64, reason domain.Reasoning) {
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 1.0)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScorer(now)
			score, reason := s.Score(tt.repo, tt.pref)
			tt.verify(t, score, reason)
		})
	}
}

func TestLanguageScore(t *testing.T) {
	tests := []struct {
		name      string
		repoLang  string
		prefLangs []string
		want      float64
	}{
		{"没限定语言视为中性满分", "Rust", nil, 1.0},
		{"精确命中不区分大小写", "python", []string{"Python"}, 1.0},
		{"偏好是仓库语言的子串", "JavaScript", []string{"Java"}, 0.7},
		{"仓库语言是偏好的子串", "C", []string{"C++"}, 0.7},
		{"仓库没标语言给保底分", "", []string{"Go"}, 0.1},
		{"完全不沾边", "Haskell", []string{"Go"}, 0.0},
		{"多个偏好里精确命中优先", "Java", []string{"JavaScript", "Java"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, languageScore(tt.repoLang, tt.prefLangs))
		})
	}
}

func TestStarScore(t *testing.T) {
	pref := &domain.Preference{MinStars: 10, MaxStars: 50000}

	tests := []struct {
		name  string
		stars int
		want  float64
	}{
		{"低于下限", 5, 0.0},
		{"小项目", 50, 0.5},
		{"百级", 500, 0.7},
		{"千级", 5000, 0.9},
		{"万级", 20000, 1.0},
		{"超过上限打折", 60000, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, starScore(tt.stars, pref))
		})
	}
}

func TestScorer_FreshnessScore(t *testing.T) {
	now := time.Now()
	s := testScorer(now)

	tests := []struct {
		name    string
		daysAgo int
		want    float64
	}{
		{"一周内", 3, 1.0},
		{"一个月内", 20, 0.8},
		{"三个月内", 60, 0.6},
		{"一年内", 200, 0.4},
		{"超过一年", 500, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pushed := now.AddDate(0, 0, -tt.daysAgo)
			repo := &domain.RepoCache{PushedAt: &pushed}
			assert.Equal(t, tt.want, s.freshnessScore(repo))
		})
	}
}

func TestScorer_FilterRepositories(t *testing.T) {
	now := time.Now()
	fresh := now.AddDate(0, 0, -2)
	created := now.AddDate(-1, 0, 0)

	mkRepo := func(id int64, name string, stars int) *domain.RepoCache {
		return &domain.RepoCache{
			RepoID:        id,
			Name:          name,
			FullName:      "octocat/" + name,
			Description:   "ai toolkit",
			Language:      "Go",
			Stars:         stars,
			RepoCreatedAt: created,
			RepoUpdatedAt: fresh,
			PushedAt:      &fresh,
		}
	}

	tests := []struct {
		name   string
		repos  []*domain.RepoCache
		pref   *domain.Preference
		verify func(*testing.T, []domain.ScoredRepo)
	}{
		{
			name: "硬过滤掉归档和低星仓库",
			repos: []*domain.RepoCache{
				mkRepo(1, "ok", 5000),
				func() *domain.RepoCache {
					r := mkRepo(2, "archived", 5000)
					r.IsArchived = true
					return r
				}(),
				mkRepo(3, "tiny", 5),
			},
			pref: &domain.Preference{Keywords: []string{"ai"}, Languages: []string{"Go"}, MinStars: 100},
			verify: func(t *testing.T, result []domain.ScoredRepo) {
				assert.Equal(t, 1, len(result))
				assert.Equal(t, int64(1), result[0].Repo.RepoID)
			},
		},
		{
			name: "按分数降序并截断到上限",
			repos: []*domain.RepoCache{
				mkRepo(1, "small", 200),
				mkRepo(2, "huge", 50000),
				mkRepo(3, "mid", 5000),
			},
			pref: &domain.Preference{
				Keywords:           []string{"ai"},
				Languages:          []string{"Go"},
				MinStars:           100,
				MaxRecommendations: 2,
			},
			verify: func(t *testing.T, result []domain.ScoredRepo) {
				assert.Equal(t, 2, len(result))
				assert.Equal(t, int64(2), result[0].Repo.RepoID)
				assert.Equal(t, int64(3), result[1].Repo.RepoID)
				assert.GreaterOrEqual(t, result[0].Score, result[1].Score)
			},
		},
		{
			name: "同分仓库保持输入顺序",
			repos: []*domain.RepoCache{
				mkRepo(10, "first", 5000),
				mkRepo(20, "second", 5000),
				mkRepo(30, "third", 5000),
			},
			pref: &domain.Preference{Keywords: []string{"ai"}, Languages: []string{"Go"}, MinStars: 100},
			verify: func(t *testing.T, result []domain.ScoredRepo) {
				assert.Equal(t, 3, len(result))
				assert.Equal(t, int64(10), result[0].Repo.RepoID)
				assert.Equal(t, int64(20), result[1].Repo.RepoID)
				assert.Equal(t, int64(30), result[2].Repo.RepoID)
			},
		},
		{
			name: "低分仓库被丢弃",
			repos: []*domain.RepoCache{
				func() *domain.RepoCache {
					r := mkRepo(1, "irrelevant", 150)
					r.Description = "nothing to see"
					r.Language = "Brainfuck"
					old := now.AddDate(-3, 0, 0)
					r.PushedAt = &old
					r.RepoUpdatedAt = old
					return r
				}(),
			},
			pref: &domain.Preference{
				Keywords:         []string{"ai"},
				Languages:        []string{"Go"},
				MinStars:         100,
				ExcludedKeywords: []string{"nothing"},
			},
			verify: func(t *testing.T, result []domain.ScoredRepo) {
				// 0.20*0.7 + 0.10*0.2 - 0.5 被钳到 0，低于下限直接丢弃
				assert.Empty(t, result)
			},
		},
		{
			name:  "空输入",
			repos: nil,
			pref:  &domain.Preference{},
			verify: func(t *testing.T, result []domain.ScoredRepo) {
				assert.Empty(t, result)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScorer(now)
			result := s.FilterRepositories(tt.repos, tt.pref)
			tt.verify(t, result)
		})
	}
}

func TestScorer_PassesHardFilters(t *testing.T) {
	now := time.Now()
	fresh := now.AddDate(0, 0, -2)
	oldTime := now.AddDate(-2, 0, 0)

	tests := []struct {
		name string
		repo *domain.RepoCache
		pref *domain.Preference
		want bool
	}{
		{
			name: "正常仓库通过",
			repo: &domain.RepoCache{Stars: 500, RepoCreatedAt: oldTime, RepoUpdatedAt: fresh},
			pref: &domain.Preference{MinStars: 100},
			want: true,
		},
		{
			name: "禁用仓库出局",
			repo: &domain.RepoCache{Stars: 500, IsDisabled: true},
			pref: &domain.Preference{},
			want: false,
		},
		{
			name: "超过星数上限出局",
			repo: &domain.RepoCache{Stars: 99999},
			pref: &domain.Preference{MaxStars: 50000},
			want: false,
		},
		{
			name: "创建时间早于要求出局",
			repo: &domain.RepoCache{Stars: 500, RepoCreatedAt: oldTime},
			pref: func() *domain.Preference {
				cutoff := now.AddDate(-1, 0, 0)
				return &domain.Preference{CreatedAfter: &cutoff}
			}(),
			want: false,
		},
		{
			name: "活跃时间早于要求出局",
			repo: &domain.RepoCache{Stars: 500, RepoCreatedAt: oldTime, RepoUpdatedAt: oldTime},
			pref: func() *domain.Preference {
				cutoff := now.AddDate(0, -1, 0)
				return &domain.Preference{UpdatedAfter: &cutoff}
			}(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScorer(now)
			assert.Equal(t, tt.want, s.PassesHardFilters(tt.repo, tt.pref))
		})
	}
}
