package channels

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignPayload(t *testing.T) {
	payload := []byte(`{"type":"crane_fault","severity":"high"}`)
	secret := "terminal-secret"

	got := SignPayload(secret, payload)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), got)

	// Chữ ký thay đổi theo secret và theo payload
	assert.NotEqual(t, got, SignPayload("khac", payload))
	assert.NotEqual(t, got, SignPayload(secret, []byte(`{}`)))
}
