package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github-recommender/internal/domain"
)

// EmailSender 通过用户自带的 SMTP 配置发邮件
// SMTP 协议没有上下文概念，ctx 只用于发送前的取消检查
type EmailSender struct{}

func (s *EmailSender) Channel() string { return domain.ChannelEmail }

// Configured 邮件渠道是否可用：需要收件地址和 SMTP 主机
func (s *EmailSender) Configured(user *domain.User) bool {
	return user.NotificationEmail != "" && user.SMTPHost != ""
}

// Send 渲染 HTML 正文并投递
func (s *EmailSender) Send(ctx context.Context, user *domain.User, pref *domain.Preference, items []Item) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	from := user.SMTPUsername
	if from == "" {
		from = user.NotificationEmail
	}
	subject := fmt.Sprintf("🎯 %s：%d 个新仓库推荐", pref.DisplayName(), len(items))
	body := renderEmailHTML(pref, items)

	msg := buildMIMEMessage(from, user.NotificationEmail, subject, body)
	addr := fmt.Sprintf("%s:%d", user.SMTPHost, user.SMTPPort)
	auth := smtp.PlainAuth("", user.SMTPUsername, user.SMTPPassword, user.SMTPHost)

	// 465 端口是隐式 TLS，其余端口走 SendMail 自带的 STARTTLS 协商
	if user.SMTPUseTLS && user.SMTPPort == 465 {
		return sendMailImplicitTLS(addr, user.SMTPHost, auth, from, user.NotificationEmail, msg)
	}
	if err := smtp.SendMail(addr, auth, from, []string{user.NotificationEmail}, msg); err != nil {
		return fmt.Errorf("SMTP 发送失败: %w", err)
	}
	return nil
}

// buildMIMEMessage 拼 MIME 头 + HTML 正文
func buildMIMEMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// sendMailImplicitTLS 465 端口的隐式 TLS 发送路径
func sendMailImplicitTLS(addr, host string, auth smtp.Auth, from, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("TLS 连接失败: %w", err)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP 握手失败: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP 认证失败: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
