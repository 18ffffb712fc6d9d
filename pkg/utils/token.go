package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	checksumLength = 16
	secretLength   = 32
)

var ErrMalformedToken = errors.New("malformed session token")

// TokenCodec mints and checks session tokens of the form
// base64("{user_id}:{unix_seconds}:{uuid}:{checksum}") where the checksum is
// a truncated HMAC-SHA256 of the first three parts.
//
// A token that parses is only a candidate: liveness is decided by the
// session store.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{
		secret: secret,
		now:    time.Now,
	}
}

// RandomSecret returns a fresh key for deployments without SESSION_SECRET.
func RandomSecret() ([]byte, error) {
	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return secret, nil
}

func (c *TokenCodec) Generate(userID int64) string {
	payload := fmt.Sprintf("%d:%d:%s", userID, c.now().Unix(), uuid.NewString())
	raw := payload + ":" + c.checksum(payload)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Parse returns the user id embedded in a token minted with the same secret.
func (c *TokenCodec) Parse(token string) (int64, error) {
	decoded, err := base64.StdEncoding.Strict().DecodeString(token)
	if err != nil {
		return 0, ErrMalformedToken
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return 0, ErrMalformedToken
	}

	payload := strings.Join(parts[:3], ":")
	if !hmac.Equal([]byte(parts[3]), []byte(c.checksum(payload))) {
		return 0, ErrMalformedToken
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, ErrMalformedToken
	}

	return userID, nil
}

func (c *TokenCodec) checksum(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:checksumLength]
}
