package monei

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const signatureMaxAge = 5 * time.Minute

// VerifySignature checks the MONEI-Signature header against the raw request
// body. The header carries "t=<unix seconds>,v1=<hex hmac>", the digest is
// HMAC-SHA256 over "{t}.{raw body}" keyed with the signing secret. Timestamps
// older than five minutes are rejected. Malformed input returns false, never
// an error.
func (c *Client) VerifySignature(rawBody []byte, header string) bool {
	if c.signingSecret == "" || header == "" {
		return false
	}
	var ts, digest string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			digest = v
		}
	}
	if ts == "" || digest == "" {
		return false
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := c.now().Sub(time.Unix(sec, 0))
	if age > signatureMaxAge || age < -signatureMaxAge {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.signingSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(digest)))
}
