package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"av-rental/internal/model"
)

func mac(secret string, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// SignHex returns the hex HMAC-SHA256 of body.
func SignHex(secret string, body []byte) string {
	return hex.EncodeToString(mac(secret, body))
}

// SignBase64 returns the base64 HMAC-SHA256 of body.
func SignBase64(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(mac(secret, body))
}

// SignStripe builds a Stripe-Signature header value for body at ts.
func SignStripe(secret string, body []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + hex.EncodeToString(mac(secret, []byte(t), []byte("."), body))
}

func invalidSignature(reason string) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidSignature, reason)
}

func verifyHex(secret, signature string, body []byte) error {
	if secret == "" {
		return invalidSignature("webhook secret not configured")
	}
	if signature == "" {
		return invalidSignature("missing signature")
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return invalidSignature("malformed signature")
	}
	if !hmac.Equal(got, mac(secret, body)) {
		return invalidSignature("signature mismatch")
	}
	return nil
}

func verifyBase64(secret, signature string, body []byte) error {
	if secret == "" {
		return invalidSignature("webhook secret not configured")
	}
	if signature == "" {
		return invalidSignature("missing signature")
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return invalidSignature("malformed signature")
	}
	if !hmac.Equal(got, mac(secret, body)) {
		return invalidSignature("signature mismatch")
	}
	return nil
}

// verifyStripe checks a "t=<unix>,v1=<hex>[,v1=...]" header. Any v1 entry may match.
func verifyStripe(secret, header string, body []byte, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return invalidSignature("webhook secret not configured")
	}
	if header == "" {
		return invalidSignature("missing signature")
	}

	var (
		ts         string
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			if sig, err := hex.DecodeString(v); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}

	if ts == "" || len(signatures) == 0 {
		return invalidSignature("malformed signature header")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return invalidSignature("malformed timestamp")
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return invalidSignature("timestamp outside tolerance")
		}
	}

	expected := mac(secret, []byte(ts), []byte("."), body)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return invalidSignature("signature mismatch")
}
