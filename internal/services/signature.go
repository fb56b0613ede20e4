package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifyHMAC validates a hex-encoded HMAC-SHA256 signature of body.
func VerifyHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	sigBytes, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, sigBytes)
}

// PaymentLinkCallback holds the query parameters Razorpay appends to the
// callback URL of a paid link.
type PaymentLinkCallback struct {
	PaymentID   string
	LinkID      string
	ReferenceID string
	Status      string
	Signature   string
}

func (c PaymentLinkCallback) Present() bool {
	return c.Signature != "" || c.LinkID != ""
}

// VerifyPaymentLinkCallback checks the callback signature against the key secret.
func VerifyPaymentLinkCallback(c PaymentLinkCallback, keySecret string) bool {
	if c.Signature == "" || keySecret == "" {
		return false
	}
	payload := c.LinkID + "|" + c.ReferenceID + "|" + c.Status + "|" + c.PaymentID
	return VerifyHMAC([]byte(payload), c.Signature, keySecret)
}
