package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	intmodels "port_stream/internal/api/integration/models"

	"github.com/valyala/fasthttp"
)

// SignatureHeader header mang chữ ký HMAC-SHA256 của body
const SignatureHeader = "X-Stream-Signature"

var webhookClient = &fasthttp.Client{
	ReadTimeout:  10 * time.Second,
	WriteTimeout: 10 * time.Second,
}

// SignPayload tính chữ ký HMAC-SHA256 hex của payload với secret
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SendWebhook POST payload JSON tới endpoint cấu hình. Header tùy biến của
// integration được gắn vào request; nếu có secret, body được ký HMAC-SHA256
// và chữ ký đặt ở SignatureHeader để bên nhận xác thực.
func SendWebhook(ctx context.Context, cfg *intmodels.WebhookConfig, payload []byte, timeout time.Duration) error {
	if cfg == nil {
		return fmt.Errorf("integration webhook chưa cấu hình")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(cfg.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if cfg.Secret != "" {
		req.Header.Set(SignatureHeader, SignPayload(cfg.Secret, payload))
	}
	req.SetBody(payload)

	if err := webhookClient.DoTimeout(req, resp, timeout); err != nil {
		return err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned status %d", status)
	}
	return nil
}
