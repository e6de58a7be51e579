package github

import (
	"strings"
	"time"

	"github-recommender/internal/domain"
)

// demoSearch 演示模式：不访问网络，在内置样本上模拟关键词/语言/star 过滤
func (s *Searcher) demoSearch(q domain.SearchQuery) []*domain.RepoCache {
	now := time.Now()
	if s.nowFunc != nil {
		now = s.nowFunc()
	}

	var result []*domain.RepoCache
	for _, repo := range demoRepos(now) {
		if q.Language != "" && !strings.EqualFold(repo.Language, q.Language) {
			continue
		}
		if repo.Stars < q.MinStars {
			continue
		}
		if len(q.Keywords) > 0 && !demoKeywordMatch(repo, q.Keywords) {
			continue
		}
		result = append(result, repo)
	}
	return result
}

func demoKeywordMatch(repo *domain.RepoCache, keywords []string) bool {
	for _, kw := range keywords {
		lower := strings.ToLower(kw)
		if strings.Contains(strings.ToLower(repo.Name), lower) ||
			strings.Contains(strings.ToLower(repo.Description), lower) {
			return true
		}
		for _, topic := range repo.Topics {
			if strings.Contains(strings.ToLower(topic), lower) {
				return true
			}
		}
	}
	return false
}

// demoRepos 内置样本，时间戳相对当前时间生成，保证新鲜度评分稳定
func demoRepos(now time.Time) []*domain.RepoCache {
	recent := now.AddDate(0, 0, -2)
	return []*domain.RepoCache{
		{
			RepoID:        1,
			FullName:      "microsoft/vscode",
			Name:          "vscode",
			OwnerLogin:    "microsoft",
			Description:   "Visual Studio Code - 代码编辑器重新定义和优化，用于构建和调试现代web和云应用程序",
			Topics:        []string{"editor", "electron", "vscode", "typescript"},
			Language:      "TypeScript",
			LicenseName:   "MIT License",
			Stars:         160000,
			Forks:         28000,
			Watchers:      160000,
			OpenIssues:    3400,
			Size:          135000,
			HTMLURL:       "https://github.com/microsoft/vscode",
			CloneURL:      "https://github.com/microsoft/vscode.git",
			Homepage:      "https://code.visualstudio.com",
			RepoCreatedAt: now.AddDate(-10, 0, 0),
			RepoUpdatedAt: recent,
			PushedAt:      &recent,
		},
		{
			RepoID:        2,
			FullName:      "tensorflow/tensorflow",
			Name:          "tensorflow",
			OwnerLogin:    "tensorflow",
			Description:   "开源机器学习框架，适用于所有人",
			Topics:        []string{"machine-learning", "deep-learning", "neural-network", "tensorflow", "python", "ai"},
			Language:      "C++",
			LicenseName:   "Apache License 2.0",
			Stars:         185000,
			Forks:         74000,
			Watchers:      185000,
			OpenIssues:    2100,
			Size:          250000,
			HTMLURL:       "https://github.com/tensorflow/tensorflow",
			CloneURL:      "https://github.com/tensorflow/tensorflow.git",
			Homepage:      "https://www.tensorflow.org",
			RepoCreatedAt: now.AddDate(-10, 0, 0),
			RepoUpdatedAt: recent,
			PushedAt:      &recent,
		},
		{
			RepoID:        3,
			FullName:      "pytorch/pytorch",
			Name:          "pytorch",
			OwnerLogin:    "pytorch",
			Description:   "具有强GPU加速的Python中的张量和动态神经网络",
			Topics:        []string{"deep-learning", "machine-learning", "tensor", "pytorch", "python"},
			Language:      "Python",
			LicenseName:   "BSD-3-Clause License",
			Stars:         82000,
			Forks:         22000,
			Watchers:      82000,
			OpenIssues:    4500,
			Size:          170000,
			HTMLURL:       "https://github.com/pytorch/pytorch",
			CloneURL:      "https://github.com/pytorch/pytorch.git",
			Homepage:      "https://pytorch.org",
			RepoCreatedAt: now.AddDate(-9, 0, 0),
			RepoUpdatedAt: recent,
			PushedAt:      &recent,
		},
		{
			RepoID:        4,
			FullName:      "kubernetes/kubernetes",
			Name:          "kubernetes",
			OwnerLogin:    "kubernetes",
			Description:   "生产级容器编排",
			Topics:        []string{"kubernetes", "containers", "orchestration", "docker", "devops"},
			Language:      "Go",
			LicenseName:   "Apache License 2.0",
			Stars:         110000,
			Forks:         39000,
			Watchers:      110000,
			OpenIssues:    2800,
			Size:          120000,
			HTMLURL:       "https://github.com/kubernetes/kubernetes",
			CloneURL:      "https://github.com/kubernetes/kubernetes.git",
			Homepage:      "https://kubernetes.io",
			RepoCreatedAt: now.AddDate(-11, 0, 0),
			RepoUpdatedAt: recent,
			PushedAt:      &recent,
		},
		{
			RepoID:        5,
			FullName:      "flutter/flutter",
			Name:          "flutter",
			OwnerLogin:    "flutter",
			Description:   "Flutter让您可以为移动、Web、桌面和嵌入式设备创建美观、快速的用户体验",
			Topics:        []string{"flutter", "dart", "mobile", "cross-platform"},
			Language:      "Dart",
			LicenseName:   "BSD-3-Clause License",
			Stars:         165000,
			Forks:         27000,
			Watchers:      165000,
			OpenIssues:    12000,
			Size:          90000,
			HTMLURL:       "https://github.com/flutter/flutter",
			CloneURL:      "https://github.com/flutter/flutter.git",
			Homepage:      "https://flutter.dev",
			RepoCreatedAt: now.AddDate(-10, 0, 0),
			RepoUpdatedAt: recent,
			PushedAt:      &recent,
		},
	}
}
