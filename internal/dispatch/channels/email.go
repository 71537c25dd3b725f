package channels

import (
	"context"
	"fmt"

	intmodels "port_stream/internal/api/integration/models"

	"gopkg.in/gomail.v2"
)

// SendEmail gửi notification qua SMTP của integration email.
// Nội dung là HTML đơn giản: title làm subject, message làm body.
func SendEmail(ctx context.Context, cfg *intmodels.EmailConfig, title, message string) error {
	if cfg == nil {
		return fmt.Errorf("integration email chưa cấu hình")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	htmlContent := fmt.Sprintf(
		`<div style="font-family:sans-serif"><h3>%s</h3><p>%s</p></div>`,
		title, message,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail))
	msg.SetHeader("To", cfg.ToEmail)
	msg.SetHeader("Subject", title)
	msg.SetBody("text/html", htmlContent)

	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return dialer.DialAndSend(msg)
}
