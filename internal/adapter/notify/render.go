package notify

import (
	"fmt"
	"strings"

	"github-recommender/internal/domain"
)

// 各渠道单条消息里最多展示的仓库数，超出部分只在结尾提一句
const (
	emailMaxItems    = 20
	telegramMaxItems = 5
	slackMaxItems    = 3
	wechatMaxItems   = 5
)

// Item 推荐记录和它对应的仓库快照，渲染的最小单元
type Item struct {
	Rec  *domain.Recommendation
	Repo *domain.RepoCache
}

// shortDescription 描述截断，渠道消息不需要长篇大论
// 按 rune 截断，中文描述不会被切出半个字符
func shortDescription(desc string, max int) string {
	runes := []rune(desc)
	if len(runes) <= max {
		return desc
	}
	return string(runes[:max]) + "..."
}

// renderEmailHTML 邮件正文，完整版：展示全部字段
func renderEmailHTML(pref *domain.Preference, items []Item) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h2>🎯 %s：为你找到 %d 个仓库</h2>", pref.DisplayName(), len(items)))

	count := 0
	for _, item := range items {
		if count >= emailMaxItems {
			break
		}
		count++

		b.WriteString("<hr>")
		b.WriteString(fmt.Sprintf(`<h3>%d. <a href="%s">%s</a></h3>`, count, item.Repo.HTMLURL, item.Repo.FullName))
		b.WriteString(fmt.Sprintf("<p>⭐ %d &nbsp;|&nbsp; 语言: %s &nbsp;|&nbsp; 评分: %.2f</p>",
			item.Repo.Stars, orDash(item.Repo.Language), item.Rec.Score))
		if item.Repo.Description != "" {
			b.WriteString(fmt.Sprintf("<p>%s</p>", shortDescription(item.Repo.Description, 300)))
		}
		if len(item.Rec.Reason.MatchedKeywords) > 0 {
			b.WriteString(fmt.Sprintf("<p><i>命中关键词: %s</i></p>",
				strings.Join(item.Rec.Reason.MatchedKeywords, ", ")))
		}
	}

	if len(items) > emailMaxItems {
		b.WriteString(fmt.Sprintf("<p>…… 还有 %d 个仓库未展示</p>", len(items)-emailMaxItems))
	}
	b.WriteString("</body></html>")
	return b.String()
}

// renderTelegram Telegram Markdown 格式
func renderTelegram(pref *domain.Preference, items []Item) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎯 *%s*：为你找到 %d 个仓库\n", pref.DisplayName(), len(items)))

	count := 0
	for _, item := range items {
		if count >= telegramMaxItems {
			break
		}
		count++

		b.WriteString(fmt.Sprintf("\n%d. [%s](%s)\n", count, item.Repo.FullName, item.Repo.HTMLURL))
		b.WriteString(fmt.Sprintf("⭐ %d | %s | 评分 %.2f\n",
			item.Repo.Stars, orDash(item.Repo.Language), item.Rec.Score))
		if item.Repo.Description != "" {
			b.WriteString(shortDescription(item.Repo.Description, 150) + "\n")
		}
	}

	if len(items) > telegramMaxItems {
		b.WriteString(fmt.Sprintf("\n…… 还有 %d 个仓库，完整列表见邮件\n", len(items)-telegramMaxItems))
	}
	return b.String()
}

// renderSlackBlocks Slack Block Kit 结构
func renderSlackBlocks(pref *domain.Preference, items []Item) []map[string]interface{} {
	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("🎯 %s：为你找到 %d 个仓库", pref.DisplayName(), len(items)),
			},
		},
	}

	count := 0
	for _, item := range items {
		if count >= slackMaxItems {
			break
		}
		count++

		text := fmt.Sprintf("*<%s|%s>*\n⭐ %d | %s | 评分 %.2f",
			item.Repo.HTMLURL, item.Repo.FullName,
			item.Repo.Stars, orDash(item.Repo.Language), item.Rec.Score)
		if item.Repo.Description != "" {
			text += "\n" + shortDescription(item.Repo.Description, 150)
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{
				"type": "mrkdwn",
				"text": text,
			},
		})
	}

	if len(items) > slackMaxItems {
		blocks = append(blocks, map[string]interface{}{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("…… 还有 %d 个仓库未展示", len(items)-slackMaxItems),
				},
			},
		})
	}
	return blocks
}

// renderWeChat 企业微信 markdown 格式
func renderWeChat(pref *domain.Preference, items []Item) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("## 🎯 %s：为你找到 %d 个仓库\n", pref.DisplayName(), len(items)))

	count := 0
	for _, item := range items {
		if count >= wechatMaxItems {
			break
		}
		count++

		b.WriteString(fmt.Sprintf("\n**%d. [%s](%s)**\n", count, item.Repo.FullName, item.Repo.HTMLURL))
		b.WriteString(fmt.Sprintf("> ⭐ %d | %s | 评分 %.2f\n",
			item.Repo.Stars, orDash(item.Repo.Language), item.Rec.Score))
		if item.Repo.Description != "" {
			b.WriteString("> " + shortDescription(item.Repo.Description, 100) + "\n")
		}
	}

	if len(items) > wechatMaxItems {
		b.WriteString(fmt.Sprintf("\n…… 还有 %d 个仓库未展示\n", len(items)-wechatMaxItems))
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
