package github

import (
	"fmt"
	"strings"

	"github-recommender/internal/domain"
)

// GitHub Search API 的 OR 条件上限，超出会被 422 拒绝
const maxKeywordsPerQuery = 5

// QueryBuilder 实现了 port.QueryBuilder 接口
type QueryBuilder struct{}

func NewQueryBuilder() *QueryBuilder { return &QueryBuilder{} }

func (b *QueryBuilder) BuildSearchQueries(pref *domain.Preference) []domain.SearchQuery {
	return BuildSearchQueries(pref)
}

// BuildSearchQueries 把一个偏好展开成一组搜索请求描述符
// 关键词按 5 个一组切块；指定了语言时按 语言 × 关键词块 做笛卡尔积，
// 每个组合一条请求。没有任何关键词和语言时也会产出恰好一条仅带
// star/日期过滤的请求
func BuildSearchQueries(pref *domain.Preference) []domain.SearchQuery {
	chunks := chunkKeywords(pref.Keywords, maxKeywordsPerQuery)

	var queries []domain.SearchQuery
	if len(pref.Languages) > 0 {
		for _, lang := range pref.Languages {
			for _, chunk := range chunks {
				queries = append(queries, domain.SearchQuery{
					Keywords:     chunk,
					Language:     lang,
					MinStars:     pref.MinStars,
					CreatedAfter: pref.CreatedAfter,
					UpdatedAfter: pref.UpdatedAfter,
				})
			}
		}
		return queries
	}

	for _, chunk := range chunks {
		queries = append(queries, domain.SearchQuery{
			Keywords:     chunk,
			MinStars:     pref.MinStars,
			CreatedAfter: pref.CreatedAfter,
			UpdatedAfter: pref.UpdatedAfter,
		})
	}
	return queries
}

// chunkKeywords 按 size 切块；空列表返回一个空块，保证至少出一条查询
func chunkKeywords(keywords []string, size int) [][]string {
	if len(keywords) == 0 {
		return [][]string{nil}
	}

	var chunks [][]string
	for i := 0; i < len(keywords); i += size {
		end := i + size
		if end > len(keywords) {
			end = len(keywords)
		}
		chunks = append(chunks, keywords[i:end])
	}
	return chunks
}

// buildQueryString 把描述符序列化成 GitHub Search 查询语法
// 关键词之间是 OR，其余条件是 AND，并且固定排除 fork
func buildQueryString(q domain.SearchQuery) string {
	var parts []string

	if len(q.Keywords) > 0 {
		parts = append(parts, strings.Join(q.Keywords, " OR "))
	}
	if q.Language != "" {
		parts = append(parts, "language:"+q.Language)
	}
	if q.MinStars > 0 {
		parts = append(parts, fmt.Sprintf("stars:>=%d", q.MinStars))
	}
	if q.CreatedAfter != nil {
		parts = append(parts, "created:>"+q.CreatedAfter.Format("2006-01-02"))
	}
	if q.UpdatedAfter != nil {
		parts = append(parts, "pushed:>"+q.UpdatedAfter.Format("2006-01-02"))
	}
	parts = append(parts, "fork:false")

	return strings.Join(parts, " ")
}
