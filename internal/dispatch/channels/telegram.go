package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	intmodels "port_stream/internal/api/integration/models"
	"port_stream/internal/logger"
)

// SendTelegram gửi notification qua Telegram Bot API (sendMessage).
func SendTelegram(ctx context.Context, cfg *intmodels.TelegramConfig, title, message string) error {
	if cfg == nil {
		return fmt.Errorf("integration telegram chưa cấu hình")
	}
	log := logger.GetAppLogger()

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.BotToken)
	payload := map[string]interface{}{
		"chat_id":    cfg.ChatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"chatId": cfg.ChatID,
		}).Error("📱 [TELEGRAM] Lỗi khi gọi Telegram API")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.WithFields(map[string]interface{}{
			"chatId":     cfg.ChatID,
			"statusCode": resp.StatusCode,
			"response":   string(bodyBytes),
		}).Error("📱 [TELEGRAM] Telegram API trả về lỗi")
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}
